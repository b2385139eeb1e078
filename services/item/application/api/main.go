package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/ghuser/secondchance/pkg/app"
	"github.com/ghuser/secondchance/services/item/application/handlers"
	appsvcs "github.com/ghuser/secondchance/services/item/application/services"
)

// ItemRoutes registers the second chance item endpoints on the provided
// chi router under /secondchance/items.
func ItemRoutes(r chi.Router, a *app.Application) error {
	svcs, err := appsvcs.New(a)
	if err != nil {
		return err
	}
	MountItems(r, svcs, a)
	return nil
}

// MountItems registers the item handlers backed by svcs.
func MountItems(r chi.Router, svcs *appsvcs.Services, a *app.Application) {
	r.Route("/secondchance/items", func(r chi.Router) {
		r.Get("/", handlers.NewListItemsHandler(svcs, a.Logger).Execute)
		r.Post("/", handlers.NewPostItemHandler(svcs, a.Logger).Execute)
		r.Get("/{id}", handlers.NewGetItemHandler(svcs, a.Logger).Execute)
		r.Put("/{id}", handlers.NewPutItemHandler(svcs, a.Logger).Execute)
		r.Delete("/{id}", handlers.NewDeleteItemHandler(svcs, a.Logger).Execute)
	})
}
