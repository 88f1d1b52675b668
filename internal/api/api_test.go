package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

const testJWTSecret = "test-secret"

func setupTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	database := db.NewTestDB(t)
	router := NewRouter(database, testJWTSecret)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	// Create admin account.
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	store.CreateUser(ctx, database, "Admin", "admin@example.com", string(hash), model.RoleAdmin)

	return server, loginAs(t, server, "admin@example.com", "password")
}

func loginAs(t *testing.T, server *httptest.Server, email, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}

	var loginResp struct {
		Token string `json:"token"`
	}
	json.NewDecoder(resp.Body).Decode(&loginResp)
	if loginResp.Token == "" {
		t.Fatal("empty token from login")
	}
	return loginResp.Token
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// registerMember creates a member account through the public endpoint and
// returns its token.
func registerMember(t *testing.T, server *httptest.Server, name, email string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{
		"display_name": name,
		"email":        email,
		"password":     "password123",
	})
	resp, err := http.Post(server.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("register request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register failed: %d", resp.StatusCode)
	}
	return loginAs(t, server, email, "password123")
}

// createItem creates an item as admin and returns its ID.
func createItem(t *testing.T, server *httptest.Server, adminToken string, item map[string]any) string {
	t.Helper()
	req, _ := authRequest("POST", server.URL+"/api/items", adminToken, item)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("create item request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create item failed: %d", resp.StatusCode)
	}
	var created model.Item
	json.NewDecoder(resp.Body).Decode(&created)
	if created.ID == "" {
		t.Fatal("created item has no ID")
	}
	return created.ID
}

func TestLoginEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)

	body, _ := json.Marshal(map[string]string{"email": "admin@example.com", "password": "wrong"})
	resp, _ := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRegisterAndMe(t *testing.T) {
	server, _ := setupTestServer(t)

	token := registerMember(t, server, "Alice", "alice@example.com")

	req, _ := authRequest("GET", server.URL+"/api/auth/me", token, nil)
	resp, _ := http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var me model.User
	json.NewDecoder(resp.Body).Decode(&me)
	resp.Body.Close()

	if me.DisplayName != "Alice" {
		t.Errorf("expected display name 'Alice', got %q", me.DisplayName)
	}
	if me.Role != model.RoleMember {
		t.Errorf("new accounts must start as members, got %q", me.Role)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	server, token := setupTestServer(t)

	req, _ := authRequest("POST", server.URL+"/api/auth/logout", token, nil)
	resp, _ := http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on logout, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The token must be dead afterwards.
	req, _ = authRequest("GET", server.URL+"/api/auth/me", token, nil)
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestItemsAPIFlow(t *testing.T) {
	server, token := setupTestServer(t)

	id := createItem(t, server, token, map[string]any{
		"title":      "Dune",
		"author":     "Frank Herbert",
		"subject":    "Sci-Fi",
		"year":       1965,
		"code":       "fic 001",
		"media_type": "book",
	})

	// Browse is public.
	resp, _ := http.Get(server.URL + "/api/items")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for public browse, got %d", resp.StatusCode)
	}
	var listing struct {
		Items []model.Item `json:"items"`
		Count int          `json:"count"`
	}
	json.NewDecoder(resp.Body).Decode(&listing)
	resp.Body.Close()
	if listing.Count != 1 || listing.Items[0].Code != "FIC-001" {
		t.Errorf("expected one item with normalized code, got %+v", listing)
	}

	// Text filter.
	resp, _ = http.Get(server.URL + "/api/items?q=herbert")
	json.NewDecoder(resp.Body).Decode(&listing)
	resp.Body.Close()
	if listing.Count != 1 {
		t.Errorf("expected text filter to match, got count %d", listing.Count)
	}

	resp, _ = http.Get(server.URL + "/api/items?q=nonexistent")
	json.NewDecoder(resp.Body).Decode(&listing)
	resp.Body.Close()
	if listing.Count != 0 {
		t.Errorf("expected no matches, got count %d", listing.Count)
	}

	// Update metadata.
	req, _ := authRequest("PUT", server.URL+"/api/items/"+id, token, map[string]any{
		"title":      "Dune (Revised)",
		"author":     "Frank Herbert",
		"media_type": "book",
	})
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on update, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Delete.
	req, _ = authRequest("DELETE", server.URL+"/api/items/"+id, token, nil)
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, _ = http.Get(server.URL + "/api/items/" + id)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestItemValidationErrors(t *testing.T) {
	server, token := setupTestServer(t)

	req, _ := authRequest("POST", server.URL+"/api/items", token, map[string]any{
		"title": "", "author": "", "media_type": "vinyl",
	})
	resp, _ := http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	var body struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if body.Fields["title"] == "" || body.Fields["media_type"] == "" {
		t.Errorf("expected per-field messages, got %+v", body.Fields)
	}
}

func TestLoanToggleFlow(t *testing.T) {
	server, adminToken := setupTestServer(t)
	memberToken := registerMember(t, server, "Alice", "alice@example.com")

	id := createItem(t, server, adminToken, map[string]any{
		"title": "Dune", "author": "Frank Herbert",
	})

	// Member borrows.
	req, _ := authRequest("POST", server.URL+"/api/items/"+id+"/loan", memberToken, nil)
	resp, _ := http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on borrow, got %d", resp.StatusCode)
	}
	var toggle struct {
		Item   model.Item `json:"item"`
		Action string     `json:"action"`
	}
	json.NewDecoder(resp.Body).Decode(&toggle)
	resp.Body.Close()
	if toggle.Action != model.ActionBorrow {
		t.Errorf("expected borrow, got %q", toggle.Action)
	}
	if toggle.Item.Available || toggle.Item.Holder == nil {
		t.Errorf("expected held item with holder, got %+v", toggle.Item)
	}
	if toggle.Item.Holder.DisplayName != "Alice" {
		t.Errorf("expected Alice as holder, got %+v", toggle.Item.Holder)
	}

	// Admin toggles the held item: return, attributed to the admin.
	req, _ = authRequest("POST", server.URL+"/api/items/"+id+"/loan", adminToken, nil)
	resp, _ = http.DefaultClient.Do(req)
	toggle.Item = model.Item{}
	json.NewDecoder(resp.Body).Decode(&toggle)
	resp.Body.Close()
	if toggle.Action != model.ActionReturn {
		t.Errorf("expected return, got %q", toggle.Action)
	}
	if !toggle.Item.Available || toggle.Item.Holder != nil {
		t.Errorf("expected available item, got %+v", toggle.Item)
	}

	// Toggling requires a token.
	resp, _ = http.Post(server.URL+"/api/items/"+id+"/loan", "application/json", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestActionEndpoint(t *testing.T) {
	server, adminToken := setupTestServer(t)

	withURL := createItem(t, server, adminToken, map[string]any{
		"title": "Cosmos", "author": "Carl Sagan",
		"media_type": "video", "media_url": "https://example.com/cosmos.mp4",
	})
	withoutURL := createItem(t, server, adminToken, map[string]any{
		"title": "Dune", "author": "Frank Herbert",
	})

	req, _ := authRequest("POST", server.URL+"/api/items/"+withURL+"/action", adminToken,
		map[string]string{"action": "open"})
	resp, _ := http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if body["media_url"] != "https://example.com/cosmos.mp4" {
		t.Errorf("expected media url, got %q", body["media_url"])
	}

	// No media URL to act on.
	req, _ = authRequest("POST", server.URL+"/api/items/"+withoutURL+"/action", adminToken,
		map[string]string{"action": "download"})
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for item without media url, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Borrow/return are not valid telemetry actions.
	req, _ = authRequest("POST", server.URL+"/api/items/"+withURL+"/action", adminToken,
		map[string]string{"action": "borrow"})
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for borrow via action endpoint, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestActivityAndRecommendations(t *testing.T) {
	server, adminToken := setupTestServer(t)

	id := createItem(t, server, adminToken, map[string]any{
		"title": "Dune", "author": "Frank Herbert",
	})

	// Two toggles produce a borrow and a return.
	for i := 0; i < 2; i++ {
		req, _ := authRequest("POST", server.URL+"/api/items/"+id+"/loan", adminToken, nil)
		resp, _ := http.DefaultClient.Do(req)
		resp.Body.Close()
	}

	req, _ := authRequest("GET", server.URL+"/api/activity?limit=10", adminToken, nil)
	resp, _ := http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var events []model.ActivityEvent
	json.NewDecoder(resp.Body).Decode(&events)
	resp.Body.Close()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Action != model.ActionReturn || events[1].Action != model.ActionBorrow {
		t.Errorf("expected [return, borrow], got [%s, %s]", events[0].Action, events[1].Action)
	}

	req, _ = authRequest("GET", server.URL+"/api/recommendations", adminToken, nil)
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var recs []model.Recommendation
	json.NewDecoder(resp.Body).Decode(&recs)
	resp.Body.Close()
	if len(recs) != 1 || recs[0].Title != "Dune" || recs[0].Count != 2 {
		t.Errorf("expected Dune with count 2, got %+v", recs)
	}

	// The feed requires auth.
	resp, _ = http.Get(server.URL + "/api/activity")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for unauthenticated feed, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestImportWithLegacyFields(t *testing.T) {
	server, token := setupTestServer(t)

	records := []map[string]any{
		{"title": "Legacy Book", "author": "Old Author", "pdfUrl": "https://example.com/old.pdf"},
		{"title": "Current Video", "author": "New Author", "media_type": "video", "media_url": "https://example.com/v.mp4"},
	}
	req, _ := authRequest("POST", server.URL+"/api/items/import", token, records)
	resp, _ := http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result map[string]int
	json.NewDecoder(resp.Body).Decode(&result)
	resp.Body.Close()
	if result["imported"] != 2 {
		t.Errorf("expected 2 imported, got %d", result["imported"])
	}

	resp, _ = http.Get(server.URL + "/api/items?q=legacy")
	var listing struct {
		Items []model.Item `json:"items"`
	}
	json.NewDecoder(resp.Body).Decode(&listing)
	resp.Body.Close()
	if len(listing.Items) != 1 {
		t.Fatalf("expected the legacy book, got %d items", len(listing.Items))
	}
	got := listing.Items[0]
	if got.MediaURL != "https://example.com/old.pdf" {
		t.Errorf("expected pdfUrl mapped to media_url, got %q", got.MediaURL)
	}
	if got.MediaType != model.MediaBook {
		t.Errorf("expected legacy record to default to book, got %q", got.MediaType)
	}
}

func TestRoleBasedAccess(t *testing.T) {
	server, _ := setupTestServer(t)
	memberToken := registerMember(t, server, "Alice", "alice@example.com")

	// Members cannot manage the catalog.
	req, _ := authRequest("POST", server.URL+"/api/items", memberToken, map[string]any{
		"title": "Dune", "author": "Frank Herbert",
	})
	resp, _ := http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for member creating item, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Members cannot see accounts.
	req, _ = authRequest("GET", server.URL+"/api/users", memberToken, nil)
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for member listing users, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUserManagement(t *testing.T) {
	server, adminToken := setupTestServer(t)
	registerMember(t, server, "Alice", "alice@example.com")

	// Find Alice's ID.
	req, _ := authRequest("GET", server.URL+"/api/users", adminToken, nil)
	resp, _ := http.DefaultClient.Do(req)
	var users []model.User
	json.NewDecoder(resp.Body).Decode(&users)
	resp.Body.Close()
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	var aliceID string
	for _, u := range users {
		if u.DisplayName == "Alice" {
			aliceID = u.ID
		}
	}
	if aliceID == "" {
		t.Fatal("Alice not found in listing")
	}

	// Promote Alice.
	req, _ = authRequest("PUT", fmt.Sprintf("%s/api/users/%s/role", server.URL, aliceID),
		adminToken, map[string]string{"role": "admin"})
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on role update, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The fresh role is visible on /me without re-login.
	aliceToken := loginAs(t, server, "alice@example.com", "password123")
	req, _ = authRequest("GET", server.URL+"/api/auth/me", aliceToken, nil)
	resp, _ = http.DefaultClient.Do(req)
	var me model.User
	json.NewDecoder(resp.Body).Decode(&me)
	resp.Body.Close()
	if me.Role != model.RoleAdmin {
		t.Errorf("expected Alice promoted to admin, got %q", me.Role)
	}

	// Remove the account.
	req, _ = authRequest("DELETE", server.URL+"/api/users/"+aliceID, adminToken, nil)
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Deleted accounts cannot log in.
	body, _ := json.Marshal(map[string]string{"email": "alice@example.com", "password": "password123"})
	resp, _ = http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for deleted account, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestEmailReuseAfterDelete(t *testing.T) {
	server, adminToken := setupTestServer(t)
	registerMember(t, server, "Alice", "alice@example.com")

	req, _ := authRequest("GET", server.URL+"/api/users", adminToken, nil)
	resp, _ := http.DefaultClient.Do(req)
	var users []model.User
	json.NewDecoder(resp.Body).Decode(&users)
	resp.Body.Close()
	var aliceID string
	for _, u := range users {
		if u.DisplayName == "Alice" {
			aliceID = u.ID
		}
	}
	if aliceID == "" {
		t.Fatal("Alice not found in listing")
	}

	req, _ = authRequest("DELETE", server.URL+"/api/users/"+aliceID, adminToken, nil)
	resp, _ = http.DefaultClient.Do(req)
	resp.Body.Close()

	// A new account under the freed address must be able to log in: the old
	// soft-deleted row may not shadow it.
	token := registerMember(t, server, "Alice Again", "alice@example.com")

	req, _ = authRequest("GET", server.URL+"/api/auth/me", token, nil)
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for the new account, got %d", resp.StatusCode)
	}
	var me model.User
	json.NewDecoder(resp.Body).Decode(&me)
	resp.Body.Close()
	if me.DisplayName != "Alice Again" || me.ID == aliceID {
		t.Errorf("expected the new account, got %+v", me)
	}
}
