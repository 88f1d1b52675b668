package api

import (
	"database/sql"
	"net/http"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	itemsHandler := &ItemsHandler{DB: db}
	loansHandler := &LoansHandler{DB: db}
	activityHandler := &ActivityHandler{DB: db}
	usersHandler := &UsersHandler{DB: db}

	authMW := AuthMiddleware(jwtSecret, db)

	// Public: account creation, login, and catalog browsing. The catalog is
	// readable before sign-in; everything that acts on it requires auth.
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/items", itemsHandler.List)
	mux.HandleFunc("GET /api/items/{id}", itemsHandler.Get)
	mux.HandleFunc("GET /api/items/{id}/cover", itemsHandler.GetCover)

	// Authenticated routes.
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("GET /api/auth/me", authMW(http.HandlerFunc(authHandler.Me)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))

	mux.Handle("POST /api/items/{id}/loan", authMW(http.HandlerFunc(loansHandler.Toggle)))
	mux.Handle("POST /api/items/{id}/action", authMW(http.HandlerFunc(loansHandler.Action)))
	mux.Handle("GET /api/activity", authMW(http.HandlerFunc(activityHandler.Recent)))
	mux.Handle("GET /api/recommendations", authMW(http.HandlerFunc(activityHandler.Recommendations)))

	// Catalog management (admin only).
	mux.Handle("POST /api/items", authMW(RequireAdmin(http.HandlerFunc(itemsHandler.Create))))
	mux.Handle("PUT /api/items/{id}", authMW(RequireAdmin(http.HandlerFunc(itemsHandler.Update))))
	mux.Handle("DELETE /api/items/{id}", authMW(RequireAdmin(http.HandlerFunc(itemsHandler.Delete))))
	mux.Handle("PUT /api/items/{id}/cover", authMW(RequireAdmin(http.HandlerFunc(itemsHandler.UploadCover))))
	mux.Handle("GET /api/items/export", authMW(RequireAdmin(http.HandlerFunc(itemsHandler.Export))))
	mux.Handle("POST /api/items/import", authMW(RequireAdmin(http.HandlerFunc(itemsHandler.Import))))

	// Account management (admin only).
	mux.Handle("GET /api/users", authMW(RequireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("PUT /api/users/{id}/role", authMW(RequireAdmin(http.HandlerFunc(usersHandler.UpdateRole))))
	mux.Handle("PUT /api/users/{id}/password", authMW(RequireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(RequireAdmin(http.HandlerFunc(usersHandler.Delete))))

	return mux
}
