package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shopvana/shopvana-backend/api/middleware"
	"github.com/shopvana/shopvana-backend/api/responses"
	"github.com/shopvana/shopvana-backend/api/validators"
	wishlistsvc "github.com/shopvana/shopvana-backend/internal/wishlists"
	"github.com/shopvana/shopvana-backend/pkg/db/models"
	"github.com/shopvana/shopvana-backend/pkg/logger"
)

type createWishlistRequest struct {
	Name string `json:"name" validate:"required"`
}

type addWishlistItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
}

type wishlistItemResponse struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name,omitempty"`
	Price     string    `json:"price,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type wishlistResponse struct {
	ID        uuid.UUID              `json:"id"`
	Name      string                 `json:"name"`
	Items     []wishlistItemResponse `json:"items"`
	AddedOn   time.Time              `json:"added_on"`
	UpdatedAt time.Time              `json:"updated_at"`
}

func newWishlistItemResponse(item *models.WishlistItem) wishlistItemResponse {
	out := wishlistItemResponse{
		ID:        item.ID,
		ProductID: item.ProductID,
		CreatedAt: item.CreatedAt,
	}
	if item.Product != nil {
		out.Name = item.Product.Name
		out.Price = item.Product.Price.StringFixed(2)
	}
	return out
}

func newWishlistResponse(list *models.Wishlist) wishlistResponse {
	items := make([]wishlistItemResponse, 0, len(list.Items))
	for i := range list.Items {
		items = append(items, newWishlistItemResponse(&list.Items[i]))
	}
	return wishlistResponse{
		ID:        list.ID,
		Name:      list.Name,
		Items:     items,
		AddedOn:   list.AddedOn,
		UpdatedAt: list.UpdatedAt,
	}
}

func WishlistCreate(svc wishlistsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createWishlistRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.Create(r.Context(), middleware.UserIDFromContext(r.Context()), payload.Name)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newWishlistResponse(list))
	}
}

func WishlistList(svc wishlistsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lists, err := svc.List(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]wishlistResponse, 0, len(lists))
		for i := range lists {
			out = append(out, newWishlistResponse(&lists[i]))
		}

		responses.WriteSuccess(w, out)
	}
}

func WishlistGet(svc wishlistsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listID, err := validators.ParsePathUUID(r, "wishlistID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.Get(r.Context(), middleware.UserIDFromContext(r.Context()), listID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newWishlistResponse(list))
	}
}

func WishlistDelete(svc wishlistsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listID, err := validators.ParsePathUUID(r, "wishlistID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), middleware.UserIDFromContext(r.Context()), listID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

func WishlistAddItem(svc wishlistsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listID, err := validators.ParsePathUUID(r, "wishlistID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload addWishlistItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.AddItem(r.Context(), middleware.UserIDFromContext(r.Context()), listID, payload.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newWishlistItemResponse(item))
	}
}

func WishlistRemoveItem(svc wishlistsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listID, err := validators.ParsePathUUID(r, "wishlistID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := validators.ParsePathUUID(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.RemoveItem(r.Context(), middleware.UserIDFromContext(r.Context()), listID, itemID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "removed"})
	}
}
