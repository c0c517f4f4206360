package sequence

import "strings"

// DocumentType identifies the kind of business document a sequence numbers
type DocumentType string

const (
	DocumentTypeInvoice       DocumentType = "INVOICE"
	DocumentTypeCreditNote    DocumentType = "CREDIT_NOTE"
	DocumentTypeQuote         DocumentType = "QUOTE"
	DocumentTypeSalesOrder    DocumentType = "SALES_ORDER"
	DocumentTypePurchaseOrder DocumentType = "PURCHASE_ORDER"
	DocumentTypeGoodsReceipt  DocumentType = "GOODS_RECEIPT"
	DocumentTypeDeliveryNote  DocumentType = "DELIVERY_NOTE"
	DocumentTypeReturnNote    DocumentType = "RETURN_NOTE"
	DocumentTypeAdjustment    DocumentType = "ADJUSTMENT"
	DocumentTypeTransfer      DocumentType = "TRANSFER"
)

// defaultPrefixes is the static fallback used when a company has not
// configured a prefix for a document type.
var defaultPrefixes = map[DocumentType]string{
	DocumentTypeInvoice:       "FAC",
	DocumentTypeCreditNote:    "AV",
	DocumentTypeQuote:         "DEV",
	DocumentTypeSalesOrder:    "BC",
	DocumentTypePurchaseOrder: "BCF",
	DocumentTypeGoodsReceipt:  "BR",
	DocumentTypeDeliveryNote:  "BL",
	DocumentTypeReturnNote:    "BRT",
	DocumentTypeAdjustment:    "AJ",
	DocumentTypeTransfer:      "TR",
}

// AllDocumentTypes returns every supported document type in a stable order
func AllDocumentTypes() []DocumentType {
	return []DocumentType{
		DocumentTypeInvoice,
		DocumentTypeCreditNote,
		DocumentTypeQuote,
		DocumentTypeSalesOrder,
		DocumentTypePurchaseOrder,
		DocumentTypeGoodsReceipt,
		DocumentTypeDeliveryNote,
		DocumentTypeReturnNote,
		DocumentTypeAdjustment,
		DocumentTypeTransfer,
	}
}

// IsValid reports whether t belongs to the closed set of document types
func (t DocumentType) IsValid() bool {
	_, ok := defaultPrefixes[t]
	return ok
}

// String returns the wire value
func (t DocumentType) String() string {
	return string(t)
}

// DefaultPrefix returns the built-in prefix for the document type
func (t DocumentType) DefaultPrefix() (string, bool) {
	p, ok := defaultPrefixes[t]
	return p, ok
}

// ParseDocumentType converts user input such as "invoice" or "credit-note"
// into a DocumentType.
func ParseDocumentType(s string) (DocumentType, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	normalized = strings.ReplaceAll(normalized, " ", "_")
	t := DocumentType(normalized)
	if !t.IsValid() {
		return "", NewValidationError("unknown document type %q", s)
	}
	return t, nil
}
