package signaling

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/1ureka/tiltlink/internal/session"
	"github.com/1ureka/tiltlink/internal/transport"
	"github.com/1ureka/tiltlink/internal/util"
)

// negotiationTimeout bounds how long a receiver may take to open its
// DataChannel after joining.
const negotiationTimeout = 30 * time.Second

const defaultPeerName = "receiver"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the pad-side WebSocket server. Every receiver that joins gets
// its own Peer on the Hub; the WebSocket is closed once the Peer's
// DataChannel is open.
type Server struct {
	hub *transport.Hub
	pin string

	ctx      context.Context
	cancel   context.CancelFunc
	listener net.Listener
	httpSrv  *http.Server
}

// NewServer creates a signaling server opening peers on hub. An empty pin
// disables the PIN check.
func NewServer(ctx context.Context, hub *transport.Hub, pin string) *Server {
	sCtx, sCancel := context.WithCancel(ctx)
	return &Server{
		hub:    hub,
		pin:    pin,
		ctx:    sCtx,
		cancel: sCancel,
	}
}

// PIN returns the PIN receivers must present.
func (s *Server) PIN() string { return s.pin }

// Start begins listening on addr (":0" picks a random port). Returns the
// assigned port number.
func (s *Server) Start(addr string) (int, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("failed to start WS server: %w", err)
	}
	s.listener = listener
	port := listener.Addr().(*net.TCPAddr).Port

	s.httpSrv = &http.Server{Handler: s.Handler()}
	go func() {
		if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.LogError("WS server stopped: %v", err)
		}
	}()

	return port, nil
}

// Handler returns the HTTP handler serving /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if s.pin != "" && q.Get("pin") != s.pin {
		http.Error(w, "Invalid PIN", http.StatusUnauthorized)
		return
	}

	name := q.Get("name")
	if name == "" {
		name = defaultPeerName
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	handle := session.PeerHandle{ID: uuid.NewString(), Name: name}
	util.LogInfo("receiver joined: %s from %s", handle, r.RemoteAddr)

	go func() {
		defer conn.Close()
		if err := s.negotiate(conn, handle); err != nil {
			util.LogWarning("[%s] signaling failed: %v", handle, err)
		}
	}()
}

// negotiate runs the pad side of the SDP/ICE exchange for one receiver:
//   - Open a Peer on the Hub
//   - Send the Offer, apply the Answer and ICE candidates
//   - Return once the DataChannel opens, or close the Peer on failure
func (s *Server) negotiate(conn *websocket.Conn, handle session.PeerHandle) error {
	peer, err := s.hub.Open(handle)
	if err != nil {
		return err
	}

	l := newLink(sideOfferer, peer, conn)

	// Exits when conn is closed by the deferred Close in handleWS.
	errCh := make(chan error, 1)
	go func() {
		errCh <- l.run()
	}()

	if err := l.offer(); err != nil {
		peer.Close()
		return fmt.Errorf("failed to send Offer: %w", err)
	}

	timer := time.NewTimer(negotiationTimeout)
	defer timer.Stop()

	select {
	case <-peer.Ready():
		util.LogDebug("[%s] DataChannel established, closing WS", handle)
		return nil

	case err := <-errCh:
		// The receiver may close the WS right after its side opened.
		select {
		case <-peer.Ready():
			return nil
		default:
		}
		peer.Close()
		return err

	case <-timer.C:
		peer.Close()
		return errors.New("negotiation timed out")

	case <-s.ctx.Done():
		peer.Close()
		return s.ctx.Err()
	}
}

// Close stops accepting receivers. Peers already open stay on the Hub.
func (s *Server) Close() error {
	s.cancel()
	if s.httpSrv != nil {
		return s.httpSrv.Close()
	}
	return nil
}

// GeneratePIN returns a random numeric PIN of the specified length.
func GeneratePIN(length int) string {
	digits := make([]byte, length)
	for i := range digits {
		n, _ := rand.Int(rand.Reader, big.NewInt(10))
		digits[i] = byte('0') + byte(n.Int64())
	}
	return string(digits)
}
