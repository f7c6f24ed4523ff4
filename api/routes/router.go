package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shopvana/shopvana-backend/api/controllers"
	"github.com/shopvana/shopvana-backend/api/middleware"
	cartsvc "github.com/shopvana/shopvana-backend/internal/cart"
	checkoutsvc "github.com/shopvana/shopvana-backend/internal/checkout"
	ordersvc "github.com/shopvana/shopvana-backend/internal/orders"
	paymentsvc "github.com/shopvana/shopvana-backend/internal/payments"
	productsvc "github.com/shopvana/shopvana-backend/internal/products"
	reviewsvc "github.com/shopvana/shopvana-backend/internal/reviews"
	wishlistsvc "github.com/shopvana/shopvana-backend/internal/wishlists"
	"github.com/shopvana/shopvana-backend/pkg/authz"
	"github.com/shopvana/shopvana-backend/pkg/config"
	"github.com/shopvana/shopvana-backend/pkg/db"
	"github.com/shopvana/shopvana-backend/pkg/logger"
	"github.com/shopvana/shopvana-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	productService productsvc.Service,
	cartService cartsvc.Service,
	checkoutService *checkoutsvc.Service,
	orderService ordersvc.Service,
	paymentService *paymentsvc.Service,
	reviewService reviewsvc.Service,
	wishlistService wishlistsvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbClient, redisClient, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// No JWT on the gateway-facing endpoints: the webhook is Chapa
		// calling us and verify is the customer's browser on return.
		r.Post("/webhooks/chapa", controllers.ChapaWebhook(paymentService, logg))
		r.Get("/payments/verify", controllers.PaymentVerify(paymentService, cfg.Chapa, logg))

		// Public catalog reads.
		r.Get("/products", controllers.ProductList(productService, logg))
		r.Get("/products/{productID}", controllers.ProductGet(productService, logg))
		r.Get("/products/{productID}/reviews", controllers.ReviewList(reviewService, logg))
		r.Get("/categories", controllers.CategoryList(productService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Post("/checkout", controllers.Checkout(checkoutService, logg))

			r.Get("/cart", controllers.CartList(cartService, logg))
			r.Delete("/cart", controllers.CartClear(cartService, logg))
			r.Post("/cart/items", controllers.CartAddItem(cartService, logg))
			r.Patch("/cart/items/{itemID}", controllers.CartUpdateItem(cartService, logg))
			r.Delete("/cart/items/{itemID}", controllers.CartRemoveItem(cartService, logg))

			r.Get("/orders", controllers.OrderList(orderService, logg))
			r.Get("/orders/{orderID}", controllers.OrderGet(orderService, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireCapability(authz.CapOrdersManage, logg))
				r.Post("/orders/{orderID}/status", controllers.OrderUpdateStatus(orderService, logg))
				r.Post("/orders/{orderID}/cancel", controllers.OrderCancel(orderService, logg))
				r.Post("/orders/{orderID}/items", controllers.OrderAddItem(orderService, logg))
				r.Patch("/orders/{orderID}/items/{itemID}", controllers.OrderUpdateItem(orderService, logg))
				r.Delete("/orders/{orderID}/items/{itemID}", controllers.OrderRemoveItem(orderService, logg))
			})

			r.With(middleware.RequireCapability(authz.CapOrdersDelete, logg)).
				Delete("/orders/{orderID}", controllers.OrderDelete(orderService, logg))

			r.With(middleware.RequireCapability(authz.CapPaymentsManage, logg)).
				Post("/payments", controllers.PaymentCreate(paymentService, logg))
			r.Post("/payments/wallet", controllers.PaymentWallet(paymentService, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireCapability(authz.CapCatalogWrite, logg))
				r.Post("/products", controllers.ProductCreate(productService, logg))
				r.Patch("/products/{productID}", controllers.ProductUpdate(productService, logg))
				r.Delete("/products/{productID}", controllers.ProductDelete(productService, logg))
				r.Post("/categories", controllers.CategoryCreate(productService, logg))
				r.Delete("/categories/{categoryID}", controllers.CategoryDelete(productService, logg))
			})

			r.Post("/products/{productID}/reviews", controllers.ReviewCreate(reviewService, logg))
			r.Patch("/reviews/{reviewID}", controllers.ReviewUpdate(reviewService, logg))
			r.Delete("/reviews/{reviewID}", controllers.ReviewDelete(reviewService, logg))

			r.Get("/wishlists", controllers.WishlistList(wishlistService, logg))
			r.Post("/wishlists", controllers.WishlistCreate(wishlistService, logg))
			r.Get("/wishlists/{wishlistID}", controllers.WishlistGet(wishlistService, logg))
			r.Delete("/wishlists/{wishlistID}", controllers.WishlistDelete(wishlistService, logg))
			r.Post("/wishlists/{wishlistID}/items", controllers.WishlistAddItem(wishlistService, logg))
			r.Delete("/wishlists/{wishlistID}/items/{itemID}", controllers.WishlistRemoveItem(wishlistService, logg))
		})
	})

	return r
}
