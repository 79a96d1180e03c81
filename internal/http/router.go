package http

import (
	"net/http"
	"strings"
)

type RouterConfig struct {
	Auth         *AuthHandler
	Users        *UserHandler
	Availability *AvailabilityHandler
	Gigs         *GigHandler
	Suggestions  *SuggestionHandler
	Middleware   []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Auth != nil {
		mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.CreateSession(w, r)
		})
		mux.HandleFunc("/sessions/current", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			cfg.Auth.DeleteCurrentSession(w, r)
		})
		mux.HandleFunc("/sessions/", func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.URL.Path, "/sessions/")
			if token == "" {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			cfg.Auth.DeleteSession(w, r, token)
		})
	}

	if cfg.Availability != nil {
		mux.HandleFunc("/workers/", func(w http.ResponseWriter, r *http.Request) {
			workerID, resource := splitWorkerPath(r.URL.Path)
			if workerID == "" {
				http.NotFound(w, r)
				return
			}
			ctx := ContextWithWorkerID(r.Context(), workerID)
			r = r.WithContext(ctx)

			switch resource {
			case "availability":
				switch r.Method {
				case http.MethodGet:
					cfg.Availability.ListForWorker(w, r)
				case http.MethodPost:
					cfg.Availability.CreateForWorker(w, r)
				case http.MethodDelete:
					cfg.Availability.ClearForWorker(w, r)
				default:
					methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodDelete)
				}
			case "availability.ics":
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Availability.ExportICS(w, r)
			case "calendar":
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Availability.MonthGrid(w, r)
			default:
				http.NotFound(w, r)
			}
		})

		mux.HandleFunc("/availability/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/availability/")
			if id == "" || strings.Contains(id, "/") {
				http.NotFound(w, r)
				return
			}
			ctx := ContextWithRuleID(r.Context(), id)
			r = r.WithContext(ctx)
			switch r.Method {
			case http.MethodPut:
				cfg.Availability.Update(w, r)
			case http.MethodDelete:
				cfg.Availability.Delete(w, r)
			default:
				methodNotAllowed(w, http.MethodPut, http.MethodDelete)
			}
		})
	}

	if cfg.Gigs != nil {
		mux.HandleFunc("/gigs", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Gigs.List(w, r)
			case http.MethodPost:
				cfg.Gigs.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/gigs/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/gigs/")
			if rest == "" {
				http.NotFound(w, r)
				return
			}
			id, action, _ := strings.Cut(rest, "/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			ctx := ContextWithGigID(r.Context(), id)
			r = r.WithContext(ctx)

			switch action {
			case "":
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Gigs.Get(w, r)
			case "accept":
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				cfg.Gigs.Accept(w, r)
			case "complete":
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				cfg.Gigs.Complete(w, r)
			case "cancel":
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				cfg.Gigs.Cancel(w, r)
			default:
				http.NotFound(w, r)
			}
		})
	}

	if cfg.Users != nil {
		mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Users.List(w, r)
			case http.MethodPost:
				cfg.Users.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/users/")
			if id == "" || strings.Contains(id, "/") {
				http.NotFound(w, r)
				return
			}
			ctx := ContextWithUserID(r.Context(), id)
			r = r.WithContext(ctx)
			switch r.Method {
			case http.MethodGet:
				cfg.Users.Get(w, r)
			case http.MethodPut:
				cfg.Users.Update(w, r)
			case http.MethodDelete:
				cfg.Users.Delete(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
			}
		})
	}

	if cfg.Suggestions != nil {
		mux.HandleFunc("/suggestions", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Suggestions.Suggest(w, r)
		})
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

// splitWorkerPath resolves "/workers/{id}/{resource}" into its identifier and
// resource segment. Paths with trailing segments beyond the resource are
// rejected by returning an empty resource.
func splitWorkerPath(path string) (workerID, resource string) {
	rest := strings.TrimPrefix(path, "/workers/")
	if rest == "" {
		return "", ""
	}
	workerID, resource, _ = strings.Cut(rest, "/")
	if strings.Contains(resource, "/") {
		return workerID, ""
	}
	return workerID, resource
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
