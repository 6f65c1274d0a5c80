package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mosaicnetworks/nodegarden/src/node"
	"github.com/sirupsen/logrus"
)

// Registry is the read side of a gardener.
type Registry interface {
	Nodes() []node.Node
	Node(id string) (node.Node, bool)
	SelfNodeID() string
}

// NodeView is the JSON representation of a node returned by the API.
type NodeView struct {
	ID          string    `json:"id"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	Tag         string    `json:"tag,omitempty"`
	Kind        string    `json:"kind"`
	LastUpdated time.Time `json:"last_updated"`
}

// NewNodeView ...
func NewNodeView(n node.Node) NodeView {
	return NodeView{
		ID:          n.ID,
		X:           n.X,
		Y:           n.Y,
		Tag:         n.Tag,
		Kind:        n.Kind.String(),
		LastUpdated: n.LastUpdated,
	}
}

// Service exposes the garden over HTTP.
type Service struct {
	sync.Mutex

	bindAddress string
	registry    Registry
	mux         *http.ServeMux
	server      *http.Server
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, registry Registry, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		registry:    registry,
		mux:         http.NewServeMux(),
		logger:      logger,
	}

	service.registerHandlers()

	service.server = &http.Server{
		Addr:    bindAddress,
		Handler: service.mux,
	}

	return &service
}

// registerHandlers registers the API handlers with the service's own mux, so
// that several gardens can run in the same process.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering garden API handlers")
	s.mux.HandleFunc("/stats", s.makeHandler(s.GetStats))
	s.mux.HandleFunc("/nodes", s.makeHandler(s.GetNodes))
	s.mux.HandleFunc("/node/", s.makeHandler(s.GetNode))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		fn(w, r)
	}
}

// Handler returns the handler serving the API.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// Serve calls ListenAndServe. This is a blocking call which returns after
// Shutdown.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving garden API")

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		s.logger.Error(err)
	}
}

// Shutdown stops the server.
func (s *Service) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.WithError(err).Error("Shutting down garden API")
	}
}

// Stats ...
type Stats struct {
	SelfID  string `json:"self_id"`
	Nodes   int    `json:"nodes"`
	Self    int    `json:"self"`
	Other   int    `json:"other"`
	Default int    `json:"default"`
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	nodes := s.registry.Nodes()

	stats := Stats{
		SelfID: s.registry.SelfNodeID(),
		Nodes:  len(nodes),
	}

	for _, n := range nodes {
		switch n.Kind {
		case node.Self:
			stats.Self++
		case node.Other:
			stats.Other++
		case node.Default:
			stats.Default++
		}
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(stats)
}

// GetNodes ...
func (s *Service) GetNodes(w http.ResponseWriter, r *http.Request) {
	nodes := s.registry.Nodes()

	res := make([]NodeView, len(nodes))
	for i, n := range nodes {
		res[i] = NewNodeView(n)
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(res)
}

// GetNode ...
func (s *Service) GetNode(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/node/")

	if id == "" {
		http.Error(w, "missing node id", http.StatusBadRequest)
		return
	}

	n, ok := s.registry.Node(id)
	if !ok {
		s.logger.WithField("id", id).Debug("Node not found")

		http.Error(w, "node not found", http.StatusNotFound)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(NewNodeView(n))
}
