package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"platebook/models"
	"platebook/pkg/analyzer"
	"platebook/pkg/googleauth"
	"platebook/pkg/token"
)

// fakeVerifier stands in for Google during tests.
type fakeVerifier struct {
	email   string
	picture string
	err     error
}

func (f *fakeVerifier) Verify(_ context.Context, _ string) (*googleauth.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &googleauth.Identity{Email: f.email, Picture: f.picture}, nil
}

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, bearer string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func postJSON(r http.Handler, path string, payload any, bearer string) *httptest.ResponseRecorder {
	b, _ := json.Marshal(payload)
	return performRequest(r, http.MethodPost, path, bytes.NewReader(b), bearer)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("bad json body %q: %v", rec.Body.String(), err)
	}
	return out
}

func setupTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	// integration tests are opt-in. Set DB_DSN_TEST=1 and DB_DSN to run them.
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	gin.SetMode(gin.TestMode)
	var err error
	issuer, err = token.NewIssuer(token.Config{
		AccessSecret:  []byte("it-access-secret"),
		RefreshSecret: []byte("it-refresh-secret"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	_ = os.Setenv("UPLOAD_BASE", t.TempDir())
	initDB()
	r := gin.New()
	setupRoutes(r)
	return r
}

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@example.com", prefix, time.Now().UnixNano())
}

func registerTestUser(t *testing.T, r http.Handler, email, password string) map[string]any {
	t.Helper()
	rec := postJSON(r, "/auth/register", map[string]string{"email": email, "password": password}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed status=%d body=%s", rec.Code, rec.Body.String())
	}
	return decodeBody(t, rec)
}

func TestRegisterThenLogin(t *testing.T) {
	r := setupTestServer(t)
	email := uniqueEmail("roundtrip")

	reg := registerTestUser(t, r, email, "pass-1234")
	if reg["accessToken"] == "" || reg["refreshToken"] == "" {
		t.Fatalf("register returned empty tokens: %v", reg)
	}

	rec := postJSON(r, "/auth/login", map[string]string{"email": email, "password": "pass-1234"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed status=%d body=%s", rec.Code, rec.Body.String())
	}
	login := decodeBody(t, rec)

	// both flows must yield tokens bound to the same user id
	regID, err := issuer.Verify(reg["accessToken"].(string), token.Access)
	if err != nil {
		t.Fatalf("verify register token: %v", err)
	}
	loginID, err := issuer.Verify(login["accessToken"].(string), token.Access)
	if err != nil {
		t.Fatalf("verify login token: %v", err)
	}
	if regID != loginID {
		t.Fatalf("user id mismatch: register=%d login=%d", regID, loginID)
	}
}

func TestRegisterMissingFields(t *testing.T) {
	r := setupTestServer(t)
	rec := postJSON(r, "/auth/register", map[string]string{"email": uniqueEmail("nofields")}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDuplicateRegisterConflicts(t *testing.T) {
	r := setupTestServer(t)
	email := uniqueEmail("dup")

	registerTestUser(t, r, email, "first-pass")
	rec := postJSON(r, "/auth/register", map[string]string{"email": email, "password": "other-pass"}, "")
	if rec.Code != http.StatusNotAcceptable {
		t.Fatalf("expected 406, got %d body=%s", rec.Code, rec.Body.String())
	}
}

// Wrong password and unknown email must be indistinguishable.
func TestLoginErrorsAreUniform(t *testing.T) {
	r := setupTestServer(t)
	email := uniqueEmail("uniform")
	registerTestUser(t, r, email, "right-pass")

	wrongPass := postJSON(r, "/auth/login", map[string]string{"email": email, "password": "wrong"}, "")
	noUser := postJSON(r, "/auth/login", map[string]string{"email": uniqueEmail("ghost"), "password": "wrong"}, "")

	if wrongPass.Code != http.StatusBadRequest || noUser.Code != http.StatusBadRequest {
		t.Fatalf("expected 400/400, got %d/%d", wrongPass.Code, noUser.Code)
	}
	if wrongPass.Body.String() != noUser.Body.String() {
		t.Fatalf("error bodies differ: %q vs %q", wrongPass.Body.String(), noUser.Body.String())
	}
}

func TestRefreshRotation(t *testing.T) {
	r := setupTestServer(t)
	reg := registerTestUser(t, r, uniqueEmail("rotate"), "pass-1234")
	r0 := reg["refreshToken"].(string)

	rec := postJSON(r, "/auth/refresh", map[string]string{"refreshToken": r0}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("first refresh failed status=%d body=%s", rec.Code, rec.Body.String())
	}
	pair := decodeBody(t, rec)
	if pair["refreshToken"].(string) == r0 {
		t.Fatal("rotation returned the same refresh token")
	}

	// the consumed token must be rejected on replay
	rec = postJSON(r, "/auth/refresh", map[string]string{"refreshToken": r0}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("replay: expected 400, got %d", rec.Code)
	}

	// the rotated-in token still works
	rec = postJSON(r, "/auth/refresh", map[string]string{"refreshToken": pair["refreshToken"].(string)}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("rotated token rejected: %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	r := setupTestServer(t)
	reg := registerTestUser(t, r, uniqueEmail("logout"), "pass-1234")
	r0 := reg["refreshToken"].(string)

	rec := postJSON(r, "/auth/logout", map[string]string{"refreshToken": r0}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("logout failed status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = postJSON(r, "/auth/refresh", map[string]string{"refreshToken": r0}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("refresh after logout: expected 400, got %d", rec.Code)
	}
	// logging out twice is a replay too
	rec = postJSON(r, "/auth/logout", map[string]string{"refreshToken": r0}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("double logout: expected 400, got %d", rec.Code)
	}
}

// Two simultaneous refreshes of the same token: exactly one wins, and the
// user's stored set ends with exactly one token.
func TestConcurrentRefreshSingleWinner(t *testing.T) {
	r := setupTestServer(t)
	reg := registerTestUser(t, r, uniqueEmail("race"), "pass-1234")
	r0 := reg["refreshToken"].(string)
	userID := uint(reg["id"].(float64))

	var wg sync.WaitGroup
	codes := make([]int, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = postJSON(r, "/auth/refresh", map[string]string{"refreshToken": r0}, "").Code
		}(i)
	}
	wg.Wait()

	ok, bad := 0, 0
	for _, code := range codes {
		switch code {
		case http.StatusOK:
			ok++
		case http.StatusBadRequest:
			bad++
		}
	}
	if ok != 1 || bad != 1 {
		t.Fatalf("expected exactly one winner, got codes %v", codes)
	}

	var count int64
	if err := db.Model(&models.RefreshToken{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 stored refresh token, got %d", count)
	}
}

func TestGoogleSignInJoinsExistingAccount(t *testing.T) {
	r := setupTestServer(t)
	email := uniqueEmail("google-join")
	reg := registerTestUser(t, r, email, "local-pass")

	googleVerifier = &fakeVerifier{email: email, picture: "https://lh3.example/p.jpg"}
	rec := postJSON(r, "/auth/google", map[string]string{"credential": "fake-id-token"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("google signin failed status=%d body=%s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["id"].(float64) != reg["id"].(float64) {
		t.Fatalf("expected same account id, got %v and %v", body["id"], reg["id"])
	}

	// both refresh tokens belong to the one account's set
	userID := uint(reg["id"].(float64))
	var count int64
	db.Model(&models.RefreshToken{}).Where("user_id = ?", userID).Count(&count)
	if count != 2 {
		t.Fatalf("expected 2 stored refresh tokens, got %d", count)
	}
	// local password still works
	if rec := postJSON(r, "/auth/login", map[string]string{"email": email, "password": "local-pass"}, ""); rec.Code != http.StatusOK {
		t.Fatalf("local login after google signin failed: %d", rec.Code)
	}
}

func TestGoogleOnlyAccountCannotLoginLocally(t *testing.T) {
	r := setupTestServer(t)
	email := uniqueEmail("google-only")

	googleVerifier = &fakeVerifier{email: email, picture: "https://lh3.example/p.jpg"}
	rec := postJSON(r, "/auth/google", map[string]string{"credential": "fake-id-token"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("google signin failed status=%d body=%s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["profileImage"] != "https://lh3.example/p.jpg" {
		t.Fatalf("provider picture not stored: %v", body["profileImage"])
	}

	// the sentinel (absent) password must never validate, whatever is sent
	for _, pw := range []string{"", "0", "anything"} {
		rec := postJSON(r, "/auth/login", map[string]string{"email": email, "password": pw}, "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("login %q: expected 400, got %d", pw, rec.Code)
		}
	}
}

func TestGoogleSignInRejected(t *testing.T) {
	r := setupTestServer(t)
	googleVerifier = &fakeVerifier{err: fmt.Errorf("token used too late")}
	rec := postJSON(r, "/auth/google", map[string]string{"credential": "stale"}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPostsAndCommentsFlow(t *testing.T) {
	r := setupTestServer(t)
	alice := registerTestUser(t, r, uniqueEmail("alice"), "pass-1234")
	bob := registerTestUser(t, r, uniqueEmail("bob"), "pass-1234")
	aliceTok := alice["accessToken"].(string)
	bobTok := bob["accessToken"].(string)

	// create requires auth
	if rec := postJSON(r, "/posts", map[string]string{"title": "Shakshuka"}, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated create: expected 401, got %d", rec.Code)
	}

	rec := postJSON(r, "/posts", map[string]string{
		"title":   "Shakshuka",
		"content": "Tomatoes, eggs, paprika. Simmer, crack eggs, cover.",
	}, aliceTok)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create post failed status=%d body=%s", rec.Code, rec.Body.String())
	}
	post := decodeBody(t, rec)
	postID := fmt.Sprintf("%.0f", post["id"].(float64))

	// public read
	if rec := performRequest(r, http.MethodGet, "/posts/"+postID, nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("get post failed: %d", rec.Code)
	}

	// like toggles
	rec = postJSON(r, "/posts/"+postID+"/like", nil, bobTok)
	if rec.Code != http.StatusOK {
		t.Fatalf("like failed status=%d body=%s", rec.Code, rec.Body.String())
	}
	liked := decodeBody(t, rec)
	if likes := liked["likes"].([]any); len(likes) != 1 {
		t.Fatalf("expected 1 like, got %v", likes)
	}
	rec = postJSON(r, "/posts/"+postID+"/like", nil, bobTok)
	unliked := decodeBody(t, rec)
	if likes := unliked["likes"].([]any); len(likes) != 0 {
		t.Fatalf("expected unlike to clear likes, got %v", likes)
	}

	// comment then list by post
	rec = postJSON(r, "/comments", map[string]any{"content": "Looks great", "postId": post["id"]}, bobTok)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create comment failed status=%d body=%s", rec.Code, rec.Body.String())
	}
	comment := decodeBody(t, rec)
	if rec := performRequest(r, http.MethodGet, "/comments?postId="+postID, nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("list comments failed: %d", rec.Code)
	}

	// only the owner may delete
	commentID := fmt.Sprintf("%.0f", comment["id"].(float64))
	if rec := performRequest(r, http.MethodDelete, "/comments/"+commentID, nil, aliceTok); rec.Code != http.StatusForbidden {
		t.Fatalf("non-owner delete: expected 403, got %d", rec.Code)
	}
	if rec := performRequest(r, http.MethodDelete, "/comments/"+commentID, nil, bobTok); rec.Code != http.StatusNoContent {
		t.Fatalf("owner delete: expected 204, got %d", rec.Code)
	}
}

func TestAnalyzePost(t *testing.T) {
	r := setupTestServer(t)
	alice := registerTestUser(t, r, uniqueEmail("cook"), "pass-1234")

	rec := postJSON(r, "/posts", map[string]string{
		"title":   "Garlic pasta",
		"content": "Boil pasta, fry garlic in olive oil, toss.",
	}, alice["accessToken"].(string))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create post failed: %d", rec.Code)
	}
	post := decodeBody(t, rec)
	postID := fmt.Sprintf("%.0f", post["id"].(float64))

	fake := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"Easy. 20 minutes. Italian."}]}}]}`)
	}))
	defer fake.Close()
	recipeAnalyzer = analyzer.NewClient("test-key")
	recipeAnalyzer.BaseURL = fake.URL

	rec = performRequest(r, http.MethodGet, "/posts/"+postID+"/analyze", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("analyze failed status=%d body=%s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["analysis"] != "Easy. 20 minutes. Italian." {
		t.Fatalf("unexpected analysis: %v", body["analysis"])
	}
}
