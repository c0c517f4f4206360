package handler

import (
	"github.com/erp/docnumber/internal/infrastructure/auth"
	"github.com/erp/docnumber/internal/interfaces/http/middleware"
	"github.com/erp/docnumber/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// SequenceRoutes maps the sequence endpoints and their permissions
func SequenceRoutes(h *SequenceHandler, log *zap.Logger) *router.DomainGroup {
	allocate := middleware.RequirePermission(auth.PermissionSequenceAllocate, log)
	admin := middleware.RequirePermission(auth.PermissionSequenceAdmin, log)

	g := router.NewDomainGroup("sequence", "/sequences")
	g.POST("/allocate", allocate, h.Allocate)
	g.GET("/preview", allocate, h.Preview)
	g.POST("/reset", admin, h.Reset)
	g.GET("", allocate, h.List)
	g.GET("/:id", allocate, h.GetByID)
	g.GET("/:id/issued", allocate, h.ListIssued)
	g.POST("/:id/activate", admin, h.Activate)
	g.POST("/:id/deactivate", admin, h.Deactivate)
	return g
}

// CompanyRoutes maps the company numbering endpoints
func CompanyRoutes(h *CompanyHandler, log *zap.Logger) *router.DomainGroup {
	g := router.NewDomainGroup("company", "/companies")
	g.GET("/:id/numbering", middleware.RequirePermission(auth.PermissionSequenceAllocate, log), h.GetNumbering)
	g.PUT("/:id/numbering", middleware.RequirePermission(auth.PermissionCompanyWrite, log), h.UpdateNumbering)
	return g
}

// SystemRoutes maps the informational endpoints
func SystemRoutes(h *SystemHandler) *router.DomainGroup {
	g := router.NewDomainGroup("system", "/system")
	g.GET("/info", h.GetSystemInfo)
	g.GET("/ping", h.Ping)
	return g
}
