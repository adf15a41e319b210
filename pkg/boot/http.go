package boot

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/01fortes/gocdi/pkg/container"
)

// BeanView is the JSON form of a bean definition
type BeanView struct {
	Name            string      `json:"name"`
	Class           string      `json:"class"`
	Types           []string    `json:"types"`
	Qualifiers      []string    `json:"qualifiers,omitempty"`
	Scope           string      `json:"scope"`
	Stereotypes     []string    `json:"stereotypes,omitempty"`
	Module          string      `json:"module,omitempty"`
	InjectionPoints []PointView `json:"injection_points,omitempty"`
}

// PointView is the JSON form of an injection point
type PointView struct {
	Point      string   `json:"point"`
	Type       string   `json:"type"`
	Qualifiers []string `json:"qualifiers,omitempty"`
	Provider   bool     `json:"provider,omitempty"`
}

// DiagnosticsHandler serves read-only views of a context:
//
//	GET /beans           every bean definition, in registration order
//	GET /beans/{name}    one bean definition
//	GET /metrics/beans   in-memory per-bean metrics
//	GET /metrics         Prometheus exposition, when registry is not nil
//
// Cross-origin reads are allowed from the comma separated origins in the
// DiagnosticsOriginsProperty property.
func DiagnosticsHandler(appCtx container.ApplicationContext, registry *prometheus.Registry) http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	if origins := allowedOrigins(appCtx.Properties()); len(origins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			MaxAge:         300,
		}))
	}

	router.Get("/beans", func(w http.ResponseWriter, r *http.Request) {
		defs := appCtx.BeanDefinitions()
		views := make([]BeanView, 0, len(defs))
		for _, def := range defs {
			views = append(views, NewBeanView(def))
		}
		writeJSON(w, http.StatusOK, views)
	})

	router.Get("/beans/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		for _, def := range appCtx.BeanDefinitions() {
			if def.Name() == name {
				writeJSON(w, http.StatusOK, NewBeanView(def))
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "bean not found: " + name})
	})

	router.Get("/metrics/beans", func(w http.ResponseWriter, r *http.Request) {
		metrics := appCtx.Metrics()
		names := make([]string, 0, len(metrics))
		for name := range metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		list := make([]*container.BeanMetrics, 0, len(names))
		for _, name := range names {
			list = append(list, metrics[name])
		}
		writeJSON(w, http.StatusOK, list)
	})

	if registry != nil {
		router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
	return router
}

// NewBeanView converts a bean definition
func NewBeanView(def *container.BeanDefinition) BeanView {
	view := BeanView{
		Name:        def.Name(),
		Class:       def.Class().String(),
		Scope:       string(def.Scope()),
		Stereotypes: def.Stereotypes(),
		Module:      def.Module(),
	}
	for _, t := range def.Types() {
		view.Types = append(view.Types, t.String())
	}
	for _, q := range def.Qualifiers().Slice() {
		view.Qualifiers = append(view.Qualifiers, q.String())
	}
	for _, p := range def.InjectionPoints() {
		pv := PointView{Point: p.String(), Type: p.Type.String(), Provider: p.Provider}
		for _, q := range p.Qualifiers.Slice() {
			pv.Qualifiers = append(pv.Qualifiers, q.String())
		}
		view.InjectionPoints = append(view.InjectionPoints, pv)
	}
	return view
}

func allowedOrigins(props *container.Properties) []string {
	var origins []string
	for _, o := range strings.Split(props.Get(DiagnosticsOriginsProperty), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
