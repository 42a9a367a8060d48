package annotation

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/lewtec/sinalizador/internal/domain"
	"github.com/lewtec/sinalizador/internal/store"
)

type AnnotatorApp struct {
	Store    *store.Store
	Folder   *ImageFolder
	Config   *Config
	Sessions *SessionStore
}

func (a *AnnotatorApp) init() {
	if a.Sessions == nil {
		a.Sessions = NewSessionStore()
	}
}

func stringOr(str, or string) string {
	if str != "" {
		return str
	} else {
		return or
	}
}

func pathParts(path string) []string {
	parts := strings.Split(path, "/")
	if len(parts) > 0 && parts[0] == "" {
		parts = parts[1:]
	}
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// imageSummary is a dashboard row
type imageSummary struct {
	Name        string
	DisplayName string
	Flags       int
	Boxes       int
}

func summarize(name, displayName string, annotation domain.ImageAnnotation) imageSummary {
	ret := imageSummary{Name: name, DisplayName: displayName, Flags: len(annotation.Flags)}
	for _, flag := range annotation.Flags {
		ret.Boxes += len(flag.Boxes)
	}
	return ret
}

// mirrorImage copies what the store has for image into the session
func (a *AnnotatorApp) mirrorImage(session *Session, image string) {
	session.SetAnnotation(image, a.Store.GetImageAnnotations(session.Email, image))
}

// mirrorFolder rebuilds the whole session mirror from the folder listing
func (a *AnnotatorApp) mirrorFolder(session *Session) map[string]domain.ImageAnnotation {
	annotations := map[string]domain.ImageAnnotation{}
	for _, image := range a.Folder.Images() {
		annotations[image] = a.Store.GetImageAnnotations(session.Email, image)
	}
	session.ReplaceAnnotations(annotations)
	return session.Annotations()
}

func (a *AnnotatorApp) render(w http.ResponseWriter, r *http.Request, page string, data map[string]any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := RenderPage(r, w, page, data); err != nil {
		log.Printf("error: http: while rendering %s: %s", page, err)
	}
}

// requireSession answers "Not logged in" when the request has no session
func requireSession(w http.ResponseWriter, r *http.Request) *Session {
	session := GetSession(r.Context())
	if session == nil {
		writeFailure(w, LocalizeWithContext(r.Context(), "api.not_logged_in"))
	}
	return session
}

func decodeBody(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// storeResult turns the outcome of a store mutation into the API answer
func (a *AnnotatorApp) storeResult(w http.ResponseWriter, r *http.Request, session *Session, image, message string, err error) {
	if err != nil {
		if domain.IsReported(err) {
			writeFailure(w, err.Error())
			return
		}
		writeInternalError(w, err)
		return
	}
	a.mirrorImage(session, image)
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: message})
}

func (a *AnnotatorApp) GetHTTPHandler() http.Handler {
	a.init()
	mux := http.NewServeMux()

	mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "OK")
	})

	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			a.render(w, r, "login", nil)
			return
		}
		message, user, err := a.Store.Login(strings.TrimSpace(r.FormValue("email")))
		if err != nil {
			a.render(w, r, "login", map[string]any{"Error": err.Error()})
			return
		}
		session := a.Sessions.Create(user.Email, user.Name)
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    session.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		log.Printf("http: %s", message)
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	})

	mux.HandleFunc("/register", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			a.render(w, r, "register", nil)
			return
		}
		name := strings.TrimSpace(r.FormValue("name"))
		email := strings.TrimSpace(r.FormValue("email"))
		message, err := a.Store.Register(r.Context(), name, email)
		if err != nil {
			if !domain.IsReported(err) {
				log.Printf("error: http: while registering %s: %s", email, err)
				w.WriteHeader(http.StatusInternalServerError)
			}
			a.render(w, r, "register", map[string]any{"Error": err.Error()})
			return
		}
		a.render(w, r, "login", map[string]any{"Success": message})
	})

	mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		if session := GetSession(r.Context()); session != nil {
			a.Sessions.Delete(session.ID)
		}
		http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
		http.Redirect(w, r, "/login", http.StatusFound)
	})

	mux.HandleFunc("/dashboard", func(w http.ResponseWriter, r *http.Request) {
		session := GetSession(r.Context())
		if session == nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		annotations := a.mirrorFolder(session)

		user, _ := a.Store.User(session.Email)
		show := strings.EqualFold(r.URL.Query().Get("show"), "true")
		if !show && user.LastAnnotatedImage != nil && a.Folder.Contains(*user.LastAnnotatedImage) {
			http.Redirect(w, r, "/annotate/"+*user.LastAnnotatedImage, http.StatusFound)
			return
		}

		images := []imageSummary{}
		for _, image := range a.Folder.Images() {
			images = append(images, summarize(image, a.Folder.DisplayName(image), annotations[image]))
		}
		a.render(w, r, "dashboard", map[string]any{
			"Images":      images,
			"Folder":      a.Folder.Root,
			"Description": a.Config.Meta.Description,
		})
	})

	mux.HandleFunc("/annotate/", func(w http.ResponseWriter, r *http.Request) {
		session := GetSession(r.Context())
		if session == nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		itemPath := pathParts(r.URL.Path)
		if len(itemPath) != 2 || !a.Folder.Contains(itemPath[1]) {
			http.Redirect(w, r, "/dashboard", http.StatusFound)
			return
		}
		image := itemPath[1]
		annotations := a.Store.GetImageAnnotations(session.Email, image)
		annotationsJSON, err := json.Marshal(annotations)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			log.Printf("error: http: while encoding annotations of %s: %s", image, err)
			return
		}
		lastSelectedFlag := ""
		if user, ok := a.Store.User(session.Email); ok && user.LastSelectedFlag != nil {
			lastSelectedFlag = *user.LastSelectedFlag
		}
		a.render(w, r, "annotate", map[string]any{
			"ImageName":        image,
			"DisplayName":      a.Folder.DisplayName(image),
			"Annotations":      annotations,
			"AnnotationsJSON":  string(annotationsJSON),
			"Flags":            a.Config.Flags,
			"LastSelectedFlag": lastSelectedFlag,
		})
	})

	mux.HandleFunc("/help", func(w http.ResponseWriter, r *http.Request) {
		var markdownBuilder strings.Builder
		fmt.Fprintf(&markdownBuilder, "## %s\n", LocalizeWithContext(r.Context(), "help.description"))
		fmt.Fprintf(&markdownBuilder, "> %s\n\n", strings.ReplaceAll(stringOr(strings.TrimSpace(a.Config.Meta.Description), "(No description provided)"), "\n", "\n>"))
		fmt.Fprintf(&markdownBuilder, "## %s\n\n", LocalizeWithContext(r.Context(), "help.flags"))
		for _, flag := range a.Config.Flags {
			fmt.Fprintf(&markdownBuilder, "### %s\n", flag.ID)
			fmt.Fprintf(&markdownBuilder, "> %s\n\n", strings.ReplaceAll(stringOr(flag.Guidance, "(No description provided)"), "\n", "\n>"))
		}
		a.render(w, r, "help", map[string]any{"Content": markdownBuilder.String()})
	})

	mux.HandleFunc("/images/", func(w http.ResponseWriter, r *http.Request) {
		itemPath := pathParts(r.URL.Path)
		if len(itemPath) != 2 {
			http.NotFoundHandler().ServeHTTP(w, r)
			return
		}
		file, info, err := a.Folder.OpenImage(itemPath[1])
		if err != nil {
			http.NotFoundHandler().ServeHTTP(w, r)
			return
		}
		defer file.Close()
		hash, err := HashFile(file)
		if err == nil {
			_, err = file.Seek(0, 0)
		}
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			log.Printf("error: http: while serving image %s: %s", itemPath[1], err)
			return
		}
		w.Header().Set("ETag", `"`+hash+`"`)
		http.ServeContent(w, r, info.Name(), info.ModTime(), file)
	})

	mux.HandleFunc("/api/save_annotation", func(w http.ResponseWriter, r *http.Request) {
		session := requireSession(w, r)
		if session == nil {
			return
		}
		var body struct {
			ImageName string          `json:"image_name"`
			FlagName  string          `json:"flag_name"`
			BBox      json.RawMessage `json:"bbox"`
		}
		if err := decodeBody(r, &body); err != nil || body.ImageName == "" || body.FlagName == "" || len(body.BBox) == 0 {
			writeFailure(w, LocalizeWithContext(r.Context(), "api.missing_data"))
			return
		}
		payload, err := domain.ParseBoxPayload(body.BBox)
		if err != nil {
			writeFailure(w, err.Error())
			return
		}
		message, err := a.Store.SaveAnnotation(r.Context(), session.Email, body.ImageName, body.FlagName, payload)
		a.storeResult(w, r, session, body.ImageName, message, err)
	})

	mux.HandleFunc("/api/update_referring_expression", func(w http.ResponseWriter, r *http.Request) {
		session := requireSession(w, r)
		if session == nil {
			return
		}
		var body struct {
			ImageName           string  `json:"image_name"`
			FlagName            string  `json:"flag_name"`
			BBoxIndex           *int    `json:"bbox_index"`
			ReferringExpression *string `json:"referring_expression"`
		}
		if err := decodeBody(r, &body); err != nil || body.ImageName == "" || body.FlagName == "" || body.BBoxIndex == nil || body.ReferringExpression == nil || *body.ReferringExpression == "" {
			writeFailure(w, LocalizeWithContext(r.Context(), "api.missing_data"))
			return
		}
		message, err := a.Store.UpdateReferringExpression(r.Context(), session.Email, body.ImageName, body.FlagName, *body.BBoxIndex, *body.ReferringExpression)
		a.storeResult(w, r, session, body.ImageName, message, err)
	})

	mux.HandleFunc("/api/remove_annotation", func(w http.ResponseWriter, r *http.Request) {
		session := requireSession(w, r)
		if session == nil {
			return
		}
		var body struct {
			ImageName string `json:"image_name"`
			FlagName  string `json:"flag_name"`
			BBoxIndex *int   `json:"bbox_index"`
		}
		if err := decodeBody(r, &body); err != nil || body.ImageName == "" || body.FlagName == "" {
			writeFailure(w, LocalizeWithContext(r.Context(), "api.missing_data"))
			return
		}
		message, err := a.Store.RemoveAnnotation(r.Context(), session.Email, body.ImageName, body.FlagName, body.BBoxIndex)
		a.storeResult(w, r, session, body.ImageName, message, err)
	})

	mux.HandleFunc("/api/get_annotations/", func(w http.ResponseWriter, r *http.Request) {
		session := requireSession(w, r)
		if session == nil {
			return
		}
		itemPath := pathParts(r.URL.Path)
		if len(itemPath) != 3 {
			http.NotFoundHandler().ServeHTTP(w, r)
			return
		}
		writeJSON(w, http.StatusOK, apiResponse{Success: true, Annotations: a.Store.GetImageAnnotations(session.Email, itemPath[2])})
	})

	mux.HandleFunc("/api/navigate/", func(w http.ResponseWriter, r *http.Request) {
		session := requireSession(w, r)
		if session == nil {
			return
		}
		itemPath := pathParts(r.URL.Path)
		if len(itemPath) != 4 {
			http.NotFoundHandler().ServeHTTP(w, r)
			return
		}
		next, err := a.Folder.Neighbor(itemPath[3], itemPath[2])
		switch {
		case errors.Is(err, ErrImageNotFound):
			writeFailure(w, LocalizeWithContext(r.Context(), "api.image_not_found"))
		case errors.Is(err, ErrInvalidDirection):
			writeFailure(w, LocalizeWithContext(r.Context(), "api.invalid_direction"))
		case err != nil:
			writeInternalError(w, err)
		default:
			writeJSON(w, http.StatusOK, apiResponse{Success: true, NextImage: next})
		}
	})

	mux.HandleFunc("/api/update_last_flag", func(w http.ResponseWriter, r *http.Request) {
		session := requireSession(w, r)
		if session == nil {
			return
		}
		var body struct {
			FlagName string `json:"flag_name"`
		}
		if err := decodeBody(r, &body); err != nil || body.FlagName == "" {
			writeFailure(w, LocalizeWithContext(r.Context(), "api.missing_flag_name"))
			return
		}
		ok, err := a.Store.UpdateLastSelectedFlag(r.Context(), session.Email, body.FlagName)
		if err != nil {
			writeInternalError(w, err)
			return
		}
		if !ok {
			writeFailure(w, LocalizeWithContext(r.Context(), "api.flag_update_failed"))
			return
		}
		writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: LocalizeWithContext(r.Context(), "api.flag_updated")})
	})

	mux.HandleFunc("/api/refresh_annotations", func(w http.ResponseWriter, r *http.Request) {
		session := requireSession(w, r)
		if session == nil {
			return
		}
		if err := a.Folder.Refresh(); err != nil {
			writeInternalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, apiResponse{Success: true, Annotations: a.mirrorFolder(session)})
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFoundHandler().ServeHTTP(w, r)
			return
		}
		if GetSession(r.Context()) != nil {
			http.Redirect(w, r, "/dashboard", http.StatusFound)
			return
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	})

	log.Printf("http: serving %d images from %s", len(a.Folder.Images()), a.Folder.Root)

	var handler http.Handler = mux
	handler = sessionMiddleware(a.Sessions)(handler)
	handler = i18nMiddleware(handler)
	handler = HTTPLogger(handler)
	return handler
}
