package annotation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/lewtec/sinalizador/internal/domain"
	"github.com/lewtec/sinalizador/internal/repository"
	"github.com/lewtec/sinalizador/internal/store"
)

const testEmail = "ana@example.com"

type testApp struct {
	app     *AnnotatorApp
	handler http.Handler
	cookie  *http.Cookie
}

func setupTestApp(t *testing.T) *testApp {
	t.Helper()
	repo, _ := repository.SetupTestFiles(t)
	s, err := store.Open(context.Background(), repo)
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	folder, _ := setupTestFolder(t)
	config, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig() error = %v", err)
	}
	app := &AnnotatorApp{Store: s, Folder: folder, Config: config}
	return &testApp{app: app, handler: app.GetHTTPHandler()}
}

// login registers the test user and keeps the session cookie
func (ta *testApp) login(t *testing.T) {
	t.Helper()
	if _, err := ta.app.Store.Register(context.Background(), "Ana", testEmail); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	form := url.Values{"email": {testEmail}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	ta.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/dashboard" {
		t.Fatalf("login: got %d to %q", rec.Code, rec.Header().Get("Location"))
	}
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == SessionCookie {
			ta.cookie = cookie
		}
	}
	if ta.cookie == nil {
		t.Fatal("login did not set a session cookie")
	}
}

func (ta *testApp) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		req = httptest.NewRequest(method, path, strings.NewReader(string(data)))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if ta.cookie != nil {
		req.AddCookie(ta.cookie)
	}
	rec := httptest.NewRecorder()
	ta.handler.ServeHTTP(rec, req)
	return rec
}

type testResponse struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	NextImage   string          `json:"next_image"`
	Annotations json.RawMessage `json:"annotations"`
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) testResponse {
	t.Helper()
	var ret testResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &ret); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
	}
	return ret
}

func TestHealthcheck(t *testing.T) {
	ta := setupTestApp(t)
	rec := ta.do(t, http.MethodGet, "/healthcheck", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestIndexRedirects(t *testing.T) {
	ta := setupTestApp(t)
	rec := ta.do(t, http.MethodGet, "/", nil)
	if rec.Header().Get("Location") != "/login" {
		t.Errorf("anonymous index should go to /login, got %q", rec.Header().Get("Location"))
	}
	ta.login(t)
	rec = ta.do(t, http.MethodGet, "/", nil)
	if rec.Header().Get("Location") != "/dashboard" {
		t.Errorf("logged in index should go to /dashboard, got %q", rec.Header().Get("Location"))
	}
}

func TestAPI_NotLoggedIn(t *testing.T) {
	ta := setupTestApp(t)
	paths := []string{
		"/api/save_annotation",
		"/api/update_referring_expression",
		"/api/remove_annotation",
		"/api/get_annotations/a.png",
		"/api/navigate/next/a.png",
		"/api/update_last_flag",
		"/api/refresh_annotations",
	}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			rec := ta.do(t, http.MethodPost, path, map[string]any{})
			resp := decodeResponse(t, rec)
			if rec.Code != http.StatusOK || resp.Success || resp.Message != "Not logged in" {
				t.Errorf("got %d %+v", rec.Code, resp)
			}
		})
	}
}

func TestAPI_NotLoggedInLocalized(t *testing.T) {
	ta := setupTestApp(t)
	req := httptest.NewRequest(http.MethodGet, "/api/get_annotations/a.png", nil)
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9")
	rec := httptest.NewRecorder()
	ta.handler.ServeHTTP(rec, req)
	resp := decodeResponse(t, rec)
	if resp.Message != "Sessão não iniciada" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestLogin_UnknownUser(t *testing.T) {
	ta := setupTestApp(t)
	form := url.Values{"email": {"nobody@example.com"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	ta.handler.ServeHTTP(rec, req)
	if rec.Code == http.StatusFound {
		t.Error("unknown users must not be logged in")
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("no session cookie expected")
	}
}

func TestRegister(t *testing.T) {
	ta := setupTestApp(t)
	form := url.Values{"name": {"Ana"}, "email": {testEmail}}
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	ta.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if _, ok := ta.app.Store.User(testEmail); !ok {
		t.Error("user should be registered")
	}
}

func TestAPI_AnnotationLifecycle(t *testing.T) {
	ta := setupTestApp(t)
	ta.login(t)

	save := func(bbox any) testResponse {
		rec := ta.do(t, http.MethodPost, "/api/save_annotation", map[string]any{
			"image_name": "a.png",
			"flag_name":  "Shadows",
			"bbox":       bbox,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("save_annotation status = %d", rec.Code)
		}
		return decodeResponse(t, rec)
	}

	resp := save([]float64{1, 2, 3, 4})
	if !resp.Success || resp.Message != "Bounding box added for Shadows!" {
		t.Fatalf("unexpected response %+v", resp)
	}
	resp = save(map[string]any{"coordinates": []float64{5, 6, 7, 8}, "ref_exp": "lamp"})
	if !resp.Success {
		t.Fatalf("canonical insert failed: %+v", resp)
	}

	t.Run("session mirror follows the store", func(t *testing.T) {
		session, _ := ta.app.Sessions.Get(ta.cookie.Value)
		mirror := session.Annotations()["a.png"]
		if len(mirror.Flags["Shadows"].Boxes) != 2 {
			t.Errorf("mirror = %+v", mirror)
		}
	})

	t.Run("text update through save_annotation", func(t *testing.T) {
		resp := save(map[string]any{"referringExpression": "dark floor", "bboxIndex": 0})
		if !resp.Success || resp.Message != "Bounding box updated for Shadows!" {
			t.Errorf("unexpected response %+v", resp)
		}
		resp = save(map[string]any{"referringExpression": "nothing there", "bboxIndex": 9})
		if resp.Success {
			t.Error("out of range update should fail")
		}
	})

	t.Run("update_referring_expression", func(t *testing.T) {
		rec := ta.do(t, http.MethodPost, "/api/update_referring_expression", map[string]any{
			"image_name": "a.png", "flag_name": "Shadows", "bbox_index": 1, "referring_expression": "the lamp",
		})
		resp := decodeResponse(t, rec)
		if !resp.Success || resp.Message != "Referring expression updated for Shadows!" {
			t.Errorf("unexpected response %+v", resp)
		}

		rec = ta.do(t, http.MethodPost, "/api/update_referring_expression", map[string]any{
			"image_name": "a.png", "flag_name": "Other", "bbox_index": 0, "referring_expression": "x",
		})
		resp = decodeResponse(t, rec)
		if rec.Code != http.StatusOK || resp.Success || resp.Message != "Flag Other not found" {
			t.Errorf("unexpected response %d %+v", rec.Code, resp)
		}

		rec = ta.do(t, http.MethodPost, "/api/update_referring_expression", map[string]any{
			"image_name": "a.png", "flag_name": "Shadows",
		})
		resp = decodeResponse(t, rec)
		if resp.Success || resp.Message != "Missing required data" {
			t.Errorf("unexpected response %+v", resp)
		}

		rec = ta.do(t, http.MethodPost, "/api/update_referring_expression", map[string]any{
			"image_name": "a.png", "flag_name": "Shadows", "bbox_index": 1, "referring_expression": "",
		})
		resp = decodeResponse(t, rec)
		if resp.Success || resp.Message != "Missing required data" {
			t.Errorf("empty referring expression should be rejected, got %+v", resp)
		}
	})

	t.Run("get_annotations", func(t *testing.T) {
		rec := ta.do(t, http.MethodGet, "/api/get_annotations/a.png", nil)
		resp := decodeResponse(t, rec)
		if !resp.Success {
			t.Fatalf("unexpected response %+v", resp)
		}
		var annotation domain.ImageAnnotation
		if err := json.Unmarshal(resp.Annotations, &annotation); err != nil {
			t.Fatalf("invalid annotations: %v", err)
		}
		boxes := annotation.Flags["Shadows"].Boxes
		if len(boxes) != 2 || boxes[0].RefExp != "dark floor" || boxes[1].RefExp != "the lamp" {
			t.Errorf("boxes = %+v", boxes)
		}
	})

	t.Run("remove_annotation", func(t *testing.T) {
		rec := ta.do(t, http.MethodPost, "/api/remove_annotation", map[string]any{
			"image_name": "a.png", "flag_name": "Shadows", "bbox_index": 0,
		})
		resp := decodeResponse(t, rec)
		if !resp.Success || resp.Message != "Annotation removed for Shadows!" {
			t.Errorf("unexpected response %+v", resp)
		}
		rec = ta.do(t, http.MethodPost, "/api/remove_annotation", map[string]any{
			"image_name": "a.png", "flag_name": "Shadows",
		})
		if resp := decodeResponse(t, rec); !resp.Success {
			t.Errorf("removing the whole flag failed: %+v", resp)
		}
		rec = ta.do(t, http.MethodPost, "/api/remove_annotation", map[string]any{
			"image_name": "a.png", "flag_name": "Shadows",
		})
		if resp := decodeResponse(t, rec); resp.Success || resp.Message != "No annotation found for Shadows!" {
			t.Errorf("unexpected response %+v", resp)
		}
	})
}

func TestAPI_SaveAnnotation_BadPayload(t *testing.T) {
	ta := setupTestApp(t)
	ta.login(t)

	tests := []struct {
		name string
		body any
	}{
		{name: "missing bbox", body: map[string]any{"image_name": "a.png", "flag_name": "Shadows"}},
		{name: "missing image", body: map[string]any{"flag_name": "Shadows", "bbox": []int{1, 2, 3, 4}}},
		{name: "short bbox", body: map[string]any{"image_name": "a.png", "flag_name": "Shadows", "bbox": []int{1, 2}}},
		{name: "object without coordinates", body: map[string]any{"image_name": "a.png", "flag_name": "Shadows", "bbox": map[string]any{"x": 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ta.do(t, http.MethodPost, "/api/save_annotation", tt.body)
			resp := decodeResponse(t, rec)
			if rec.Code != http.StatusOK || resp.Success {
				t.Errorf("got %d %+v", rec.Code, resp)
			}
		})
	}
	if got := ta.app.Store.GetImageAnnotations(testEmail, "a.png"); !got.IsEmpty() {
		t.Errorf("bad payloads must not store anything: %+v", got)
	}
}

func TestAPI_Navigate(t *testing.T) {
	ta := setupTestApp(t)
	ta.login(t)

	tests := []struct {
		path    string
		success bool
		next    string
		message string
	}{
		{path: "/api/navigate/next/a.png", success: true, next: "b.jpg"},
		{path: "/api/navigate/previous/a.png", success: true, next: "c.PNG"},
		{path: "/api/navigate/next/zzz.png", message: "Image not found"},
		{path: "/api/navigate/up/a.png", message: "Invalid direction"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp := decodeResponse(t, ta.do(t, http.MethodGet, tt.path, nil))
			if resp.Success != tt.success || resp.NextImage != tt.next || resp.Message != tt.message {
				t.Errorf("got %+v", resp)
			}
		})
	}
}

func TestAPI_UpdateLastFlag(t *testing.T) {
	ta := setupTestApp(t)
	ta.login(t)

	resp := decodeResponse(t, ta.do(t, http.MethodPost, "/api/update_last_flag", map[string]any{"flag_name": "Other"}))
	if !resp.Success || resp.Message != "Flag updated" {
		t.Errorf("got %+v", resp)
	}
	user, _ := ta.app.Store.User(testEmail)
	if user.LastSelectedFlag == nil || *user.LastSelectedFlag != "Other" {
		t.Errorf("last_selected_flag = %v", user.LastSelectedFlag)
	}

	resp = decodeResponse(t, ta.do(t, http.MethodPost, "/api/update_last_flag", map[string]any{}))
	if resp.Success || resp.Message != "Missing flag name" {
		t.Errorf("got %+v", resp)
	}
}

func TestAPI_RefreshAnnotations(t *testing.T) {
	ta := setupTestApp(t)
	ta.login(t)
	if _, err := ta.app.Store.SaveAnnotation(context.Background(), testEmail, "b.jpg", "Shadows", domain.InsertBox{Coordinates: domain.Coordinates{1, 1, 2, 2}}); err != nil {
		t.Fatal(err)
	}

	resp := decodeResponse(t, ta.do(t, http.MethodGet, "/api/refresh_annotations", nil))
	if !resp.Success {
		t.Fatalf("got %+v", resp)
	}
	var annotations map[string]domain.ImageAnnotation
	if err := json.Unmarshal(resp.Annotations, &annotations); err != nil {
		t.Fatalf("invalid annotations: %v", err)
	}
	if len(annotations) != 3 {
		t.Errorf("expected an entry per folder image, got %d", len(annotations))
	}
	if len(annotations["b.jpg"].Flags) != 1 {
		t.Errorf("b.jpg = %+v", annotations["b.jpg"])
	}
}

func TestDashboard(t *testing.T) {
	ta := setupTestApp(t)

	rec := ta.do(t, http.MethodGet, "/dashboard", nil)
	if rec.Header().Get("Location") != "/login" {
		t.Errorf("anonymous dashboard should go to /login, got %q", rec.Header().Get("Location"))
	}

	ta.login(t)
	rec = ta.do(t, http.MethodGet, "/dashboard", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("fresh user should see the dashboard, got %d", rec.Code)
	}

	if _, err := ta.app.Store.SaveAnnotation(context.Background(), testEmail, "b.jpg", "Shadows", domain.InsertBox{Coordinates: domain.Coordinates{1, 1, 2, 2}}); err != nil {
		t.Fatal(err)
	}
	rec = ta.do(t, http.MethodGet, "/dashboard", nil)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/annotate/b.jpg" {
		t.Errorf("returning user should resume on b.jpg, got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = ta.do(t, http.MethodGet, "/dashboard?show=true", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("show=true must not redirect, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "b.jpg (EDITED)") {
		t.Error("dashboard should list display names")
	}
}

func TestAnnotatePage(t *testing.T) {
	ta := setupTestApp(t)
	ta.login(t)

	rec := ta.do(t, http.MethodGet, "/annotate/missing.png", nil)
	if rec.Header().Get("Location") != "/dashboard" {
		t.Errorf("unknown image should go back to dashboard, got %q", rec.Header().Get("Location"))
	}

	rec = ta.do(t, http.MethodGet, "/annotate/c.PNG", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "c.PNG (AI-GENERATED)") {
		t.Error("page should show the display name")
	}
	if !strings.Contains(body, "Lighting Match") {
		t.Error("page should list the flag catalog")
	}
}

func TestHelpPage(t *testing.T) {
	ta := setupTestApp(t)
	rec := ta.do(t, http.MethodGet, "/help", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<h3>Shadows</h3>") {
		t.Error("help should render every flag as markdown")
	}
}

func TestServeImage(t *testing.T) {
	ta := setupTestApp(t)

	rec := ta.do(t, http.MethodGet, "/images/b.jpg", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "jpg" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}

	req := httptest.NewRequest(http.MethodGet, "/images/b.jpg", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	ta.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Errorf("conditional request status = %d, want 304", rec.Code)
	}

	rec = ta.do(t, http.MethodGet, "/images/notes.txt", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("non-image status = %d, want 404", rec.Code)
	}
}

func TestLogout(t *testing.T) {
	ta := setupTestApp(t)
	ta.login(t)

	rec := ta.do(t, http.MethodGet, "/logout", nil)
	if rec.Header().Get("Location") != "/login" {
		t.Errorf("logout should go to /login, got %q", rec.Header().Get("Location"))
	}
	resp := decodeResponse(t, ta.do(t, http.MethodGet, "/api/get_annotations/a.png", nil))
	if resp.Success {
		t.Error("session should be gone after logout")
	}
}

func TestPathParts(t *testing.T) {
	tests := map[string][]string{
		"/":                         {},
		"/annotate/a.png":           {"annotate", "a.png"},
		"/api/navigate/next/a.png/": {"api", "navigate", "next", "a.png"},
	}
	for path, want := range tests {
		got := pathParts(path)
		if strings.Join(got, "|") != strings.Join(want, "|") {
			t.Errorf("pathParts(%q) = %v, want %v", path, got, want)
		}
	}
}
