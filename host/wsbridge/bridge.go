// Package wsbridge exposes a generator to browsers over a websocket.
//
// Clients send JSON requests on /ws:
//
//	{"op":"program","freq_hz":1000,"phase_deg":90}
//	{"op":"state"}
//	{"op":"init"}
//
// Every request gets a reply on the same connection. A successful init or
// program is also broadcast to all connected clients as a "state" message.
package wsbridge

import (
	"errors"
	"log"
	"math"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"ddsgen/host/ddsctl"
)

// Programmer is the part of ddsctl.Client the bridge drives
type Programmer interface {
	Init() error
	Program(frequencyHz uint32, phaseRadians float64) error
	State() (ddsctl.State, error)
}

// Request is one client message. Phase may be given in radians or degrees;
// degrees win when both are set.
type Request struct {
	Op       string   `json:"op"`
	FreqHz   uint32   `json:"freq_hz"`
	PhaseRad float64  `json:"phase_rad"`
	PhaseDeg *float64 `json:"phase_deg,omitempty"`
}

// Reply answers a Request, or announces a state change when Op is "state"
// and it was not asked for.
type Reply struct {
	Op    string      `json:"op"`
	OK    bool        `json:"ok"`
	Error string      `json:"error,omitempty"`
	State *StateReply `json:"state,omitempty"`
}

type StateReply struct {
	FreqHz    uint32  `json:"freq_hz"`
	PhaseRad  float64 `json:"phase_rad"`
	PhaseDeg  float64 `json:"phase_deg"`
	Buffer    uint8   `json:"buffer"`
	FreqWord  uint32  `json:"freq_word"`
	PhaseWord uint32  `json:"phase_word"`
}

var errUnknownOp = errors.New("unknown op")

type client struct {
	conn *websocket.Conn
	send chan Reply
}

// writePump serialises writes to conn; gorilla connections allow only one
// concurrent writer.
func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// Bridge is an http.Handler serving /ws
type Bridge struct {
	gen      Programmer
	upgrader websocket.Upgrader

	genMu sync.Mutex

	mu      sync.RWMutex
	clients map[*client]bool
}

func New(gen Programmer) *Bridge {
	return &Bridge{
		gen: gen,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*client]bool),
	}
}

// Handler returns a mux with the websocket on /ws
func (b *Bridge) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", b)
	return mux
}

func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("[WS] upgrade:", err)
		return
	}

	c := &client{conn: conn, send: make(chan Reply, 16)}
	b.mu.Lock()
	b.clients[c] = true
	b.mu.Unlock()
	go c.writePump()

	defer func() {
		b.mu.Lock()
		delete(b.clients, c)
		close(c.send)
		b.mu.Unlock()
	}()

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Println("[WS] read:", err)
			}
			return
		}

		b.process(c, req)
	}
}

// process answers req on c and tells the other clients about the new state.
// Nothing is broadcast when the state could not be read back.
func (b *Bridge) process(c *client, req Request) {
	reply, changed := b.handle(req)
	b.deliver(c, reply)
	if changed && reply.State != nil {
		b.broadcast(c, Reply{Op: "state", OK: true, State: reply.State})
	}
}

// handle runs req against the generator. changed is true when the tuning
// may have moved.
func (b *Bridge) handle(req Request) (reply Reply, changed bool) {
	b.genMu.Lock()
	defer b.genMu.Unlock()

	reply.Op = req.Op
	var err error
	switch req.Op {
	case "init":
		err = b.gen.Init()
		changed = err == nil
	case "program":
		phase := req.PhaseRad
		if req.PhaseDeg != nil {
			phase = *req.PhaseDeg * math.Pi / 180
		}
		err = b.gen.Program(req.FreqHz, phase)
		changed = err == nil
	case "state":
	default:
		err = errUnknownOp
	}
	if err != nil {
		reply.Error = err.Error()
		return reply, false
	}

	st, err := b.gen.State()
	if err != nil {
		reply.Error = err.Error()
		return reply, changed
	}
	reply.OK = true
	reply.State = &StateReply{
		FreqHz:    st.FrequencyHz,
		PhaseRad:  st.PhaseRadians,
		PhaseDeg:  st.PhaseRadians * 180 / math.Pi,
		Buffer:    st.Buffer,
		FreqWord:  st.FreqWord,
		PhaseWord: st.PhaseWord,
	}
	return reply, changed
}

func (b *Bridge) deliver(c *client, msg Reply) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.clients[c] {
		return
	}
	select {
	case c.send <- msg:
	default:
		log.Println("[WS] client send queue full, dropping", msg.Op)
	}
}

// broadcast sends msg to every client except from
func (b *Bridge) broadcast(from *client, msg Reply) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for c := range b.clients {
		if c == from {
			continue
		}
		select {
		case c.send <- msg:
		default:
		}
	}
}

// Clients returns the number of open connections
func (b *Bridge) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
