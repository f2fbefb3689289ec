package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Logger(handler.logger))
	r.Use(Recoverer(handler.logger))
	r.Use(Timeout)
	r.Use(CORS)

	r.Get("/healthz", handler.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", handler.ListProducts)
		r.Post("/products", handler.CreateProduct)
		r.Get("/products/low-stock", handler.LowStock)
		r.Post("/products/import", handler.ImportProducts)
		r.Get("/products/barcode/{code}", handler.ResolveBarcode)
		r.Get("/products/{id}", handler.GetProduct)
		r.Patch("/products/{id}", handler.PatchProduct)
		r.Delete("/products/{id}", handler.DeleteProduct)
		r.Post("/products/{id}/toggle-status", handler.ToggleProductStatus)

		r.Get("/suppliers", handler.ListSuppliers)
		r.Post("/suppliers", handler.CreateSupplier)
		r.Get("/suppliers/{id}", handler.GetSupplier)
		r.Patch("/suppliers/{id}", handler.PatchSupplier)
		r.Delete("/suppliers/{id}", handler.DeleteSupplier)
		r.Post("/suppliers/{id}/toggle-status", handler.ToggleSupplierStatus)

		r.Get("/customers", handler.ListCustomers)
		r.Post("/customers", handler.CreateCustomer)
		r.Get("/customers/{id}", handler.GetCustomer)
		r.Patch("/customers/{id}", handler.PatchCustomer)
		r.Delete("/customers/{id}", handler.DeleteCustomer)
		r.Post("/customers/{id}/toggle-status", handler.ToggleCustomerStatus)

		r.Get("/purchase-orders", handler.ListPurchaseOrders)
		r.Post("/purchase-orders", handler.CreatePurchaseOrder)
		r.Get("/purchase-orders/{id}", handler.GetPurchaseOrder)
		r.Patch("/purchase-orders/{id}", handler.PatchPurchaseOrder)
		r.Delete("/purchase-orders/{id}", handler.DeletePurchaseOrder)
		r.Post("/purchase-orders/{id}/receive", handler.ReceivePurchase)

		r.Get("/sale-orders", handler.ListSaleOrders)
		r.Post("/sale-orders", handler.CreateSaleOrder)
		r.Get("/sale-orders/{id}", handler.GetSaleOrder)
		r.Patch("/sale-orders/{id}", handler.PatchSaleOrder)
		r.Delete("/sale-orders/{id}", handler.DeleteSaleOrder)
		r.Post("/sale-orders/{id}/ship", handler.ShipSale)

		r.Get("/orders/pending", handler.PendingOrders)

		r.Post("/inventory/adjust", handler.Adjust)
		r.Get("/inventory/records", handler.ListRecords)
		r.Get("/inventory/records/export", handler.ExportRecords)
		r.Get("/inventory/batches", handler.ListBatches)
		r.Get("/inventory/batches/available", handler.AvailableBatches)
		r.Get("/inventory/movements", handler.ListMovements)
		r.Get("/inventory/valuation", handler.Valuation)
		r.Get("/inventory/audit", handler.Audit)
		r.Post("/inventory/expire", handler.ExpireBatches)

		r.Get("/dashboard", handler.Dashboard)
	})

	return r
}
