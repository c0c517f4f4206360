package models

import (
	"testing"

	"github.com/erp/docnumber/internal/domain/sequence"
	"github.com/stretchr/testify/assert"
)

func TestIssuedNumberModel_Hooks(t *testing.T) {
	m := &IssuedNumberModel{}

	err := m.BeforeUpdate(nil)
	assert.True(t, sequence.IsState(err))
	assert.Contains(t, err.Error(), "immutable")

	err = m.BeforeDelete(nil)
	assert.True(t, sequence.IsState(err))
}
