package relay

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gammazero/nexus/v3/client"
	"github.com/gammazero/nexus/v3/router"
	"github.com/gammazero/nexus/v3/wamp"
	"github.com/mosaicnetworks/nodegarden/src/node"
	"github.com/sirupsen/logrus"
)

// Server is a WAMP router relaying node messages between connected gardens.
// An embedded client registers SendProcedure and republishes every call on
// ReceivedTopic.
type Server struct {
	address    string
	realm      string
	router     router.Router
	callee     *client.Client
	listener   net.Listener
	httpServer *http.Server
	log        Log
	logger     *logrus.Entry
}

// NewServer creates a relay listening on address. If certFile and keyFile are
// both set, the relay serves secure websockets. log may be nil, in which case
// nothing is recorded.
func NewServer(address string,
	realm string,
	certFile string,
	keyFile string,
	log Log,
	logger *logrus.Entry) (*Server, error) {

	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	if realm == "" {
		realm = DefaultRealm
	}

	routerConfig := &router.Config{
		RealmConfigs: []*router.RealmConfig{
			{
				URI:           wamp.URI(realm),
				AnonymousAuth: true,
			},
		},
	}

	nxr, err := router.NewRouter(routerConfig, logger)
	if err != nil {
		return nil, err
	}

	callee, err := client.ConnectLocal(nxr, client.Config{
		Realm:  realm,
		Logger: logger,
	})
	if err != nil {
		nxr.Close()
		return nil, fmt.Errorf("connecting relay callee: %v", err)
	}

	httpServer := &http.Server{
		Handler: router.NewWebsocketServer(nxr),
		Addr:    address,
	}

	if certFile != "" && keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			callee.Close()
			nxr.Close()
			return nil, fmt.Errorf("error loading X509 key pair: %s", err)
		}
		httpServer.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		callee.Close()
		nxr.Close()
		return nil, err
	}

	res := &Server{
		address:    listener.Addr().String(),
		realm:      realm,
		router:     nxr,
		callee:     callee,
		listener:   listener,
		httpServer: httpServer,
		log:        log,
		logger:     logger,
	}

	if err := callee.Register(SendProcedure, res.sendHandler, nil); err != nil {
		res.Shutdown()
		return nil, fmt.Errorf("registering %s: %v", SendProcedure, err)
	}

	return res, nil
}

// Run serves websocket connections until Shutdown is called.
func (s *Server) Run() error {
	s.logger.WithFields(logrus.Fields{
		"address": s.address,
		"realm":   s.realm,
		"tls":     s.httpServer.TLSConfig != nil,
	}).Info("Relay listening")

	var err error
	if s.httpServer.TLSConfig != nil {
		// certificates are already in the TLSConfig
		err = s.httpServer.ServeTLS(s.listener, "", "")
	} else {
		err = s.httpServer.Serve(s.listener)
	}

	if err != nil && err != http.ErrServerClosed {
		s.logger.WithError(err).Error("Run")
		return err
	}

	return nil
}

// Shutdown stops the websocket server, the callee, and the router.
func (s *Server) Shutdown() {
	defer s.router.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.WithError(err).Error("Shutting down http server")
	}

	// Shutdown does not close a listener that was never served
	s.listener.Close()

	if err := s.callee.Close(); err != nil {
		s.logger.WithError(err).Debug("Closing relay callee")
	}
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.address
}

// sendHandler relays one message. Recording the message is best effort.
func (s *Server) sendHandler(ctx context.Context, inv *wamp.Invocation) client.InvokeResult {
	if len(inv.Arguments) != 1 {
		return errResult(
			fmt.Sprintf("Invocation should contain 1 argument, not %d", len(inv.Arguments)))
	}

	message, ok := wamp.AsString(inv.Arguments[0])
	if !ok {
		return errResult("Error reading invocation argument")
	}

	s.record(message)

	if err := s.callee.Publish(ReceivedTopic, nil, wamp.List{message}, nil); err != nil {
		s.logger.WithError(err).Error("Publishing message")
		return errResult(err.Error())
	}

	return client.InvokeResult{}
}

// record appends the message to the log. Anything that is not a node, such as
// a discovery request, is relayed but not recorded.
func (s *Server) record(message string) {
	if s.log == nil {
		return
	}

	n, err := node.Unmarshal([]byte(message))
	if err != nil {
		s.logger.WithField("message", message).Debug("Not recording non-node message")
		return
	}

	if err := s.log.Append(NewEntry(n, time.Now().UTC())); err != nil {
		s.logger.WithError(err).Error("Insert error")
	}
}

func errResult(msg string) client.InvokeResult {
	return client.InvokeResult{
		Err:  ErrRelayFailed,
		Args: wamp.List{msg},
	}
}
