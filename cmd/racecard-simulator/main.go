package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/radieske/race-wager-engine/internal/shared/config"
	"github.com/radieske/race-wager-engine/internal/shared/logger"
	"github.com/radieske/race-wager-engine/pkg/contracts/events"
)

var (
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	// Pistas do cartão simulado
	tracks = []string{"Cidade Jardim", "Gávea", "Cristal", "Tarumã"}

	// Métricas Prometheus para monitoramento de conexões e mensagens
	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "racecard_ws_connections",
		Help: "Clientes WebSocket conectados",
	})
	wsMessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "racecard_ws_messages_sent_total",
		Help: "Total de mensagens WS enviadas",
	})
	racesFinished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "racecard_races_finished_total",
		Help: "Corridas simuladas encerradas com resultado",
	})
)

// Representa uma conexão de cliente WebSocket
type clientConn struct {
	id   string
	conn *websocket.Conn
}

// hub gerencia os clientes conectados e faz broadcast das atualizações
type hub struct {
	mu      sync.RWMutex
	clients map[string]*clientConn
	log     *zap.Logger
}

func newHub(log *zap.Logger) *hub {
	return &hub{
		clients: make(map[string]*clientConn),
		log:     log,
	}
}

func (h *hub) add(c *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	wsConnections.Inc()
	h.log.Info("ws client connected", zap.String("client_id", c.id))
}

func (h *hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[id]; ok {
		delete(h.clients, id)
		wsConnections.Dec()
		h.log.Info("ws client disconnected", zap.String("client_id", id))
	}
}

func (h *hub) broadcast(v any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	msg, _ := json.Marshal(v)
	for id, c := range h.clients {
		c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Warn("ws write failed", zap.String("client_id", id), zap.Error(err))
			_ = c.conn.Close()
		} else {
			wsMessagesSent.Inc()
		}
	}
}

// simRace é o estado de uma corrida do cartão simulado.
// Avança scheduled -> in_progress -> finished conforme os ticks.
type simRace struct {
	raceID   string
	track    string
	number   int
	entrants []int
	status   string
	ticks    int // ticks já passados no status atual
	version  int
}

// Duração de cada fase, em ticks do gerador
const (
	ticksScheduled  = 6
	ticksInProgress = 2
)

func newSimRace(track string, number int) *simRace {
	n := 6 + rand.Intn(7) // 6..12 animais no páreo
	entrants := make([]int, n)
	for i := range entrants {
		entrants[i] = i + 1
	}
	return &simRace{
		raceID:   fmt.Sprintf("%s-R%d-%d", slug(track), number, time.Now().Unix()),
		track:    track,
		number:   number,
		entrants: entrants,
		status:   "scheduled",
		version:  1,
	}
}

func slug(track string) string {
	out := make([]rune, 0, len(track))
	for _, r := range track {
		switch {
		case r >= 'a' && r <= 'z':
			out = append(out, r-32)
		case r >= 'A' && r <= 'Z':
			out = append(out, r)
		}
	}
	return string(out)
}

// advance aplica um tick e devolve a atualização a enviar.
// Quando a corrida encerra, inclui a ordem de chegada sorteada.
func (s *simRace) advance(source string) events.RaceUpdate {
	s.ticks++
	switch s.status {
	case "scheduled":
		if s.ticks >= ticksScheduled {
			s.status = "in_progress"
			s.ticks = 0
		}
	case "in_progress":
		if s.ticks >= ticksInProgress {
			s.status = "finished"
			s.ticks = 0
		}
	}
	s.version++

	upd := events.RaceUpdate{
		RaceID:    s.raceID,
		Track:     s.track,
		Number:    s.number,
		Status:    s.status,
		Entrants:  s.entrants,
		Source:    source,
		Version:   s.version,
		UpdatedAt: time.Now().UTC(),
	}

	switch s.status {
	case "scheduled":
		// Enquanto aberta, o board de odds deriva a cada tick
		upd.Odds = s.quoteBoard()
	case "finished":
		upd.Result = s.drawResult()
		racesFinished.Inc()
	}
	return upd
}

// quoteBoard sorteia odds por (tipo, animal) pros tipos de cotação simples
func (s *simRace) quoteBoard() []events.OddsQuote {
	types := []string{"WIN", "PLACE", "SHOW"}
	base := map[string][2]float64{
		"WIN":   {1.8, 18.0},
		"PLACE": {1.3, 6.0},
		"SHOW":  {1.1, 3.0},
	}
	quotes := make([]events.OddsQuote, 0, len(types)*len(s.entrants))
	for _, t := range types {
		b := base[t]
		for _, e := range s.entrants {
			quotes = append(quotes, events.OddsQuote{
				RaceID:    s.raceID,
				WagerType: t,
				Entrant:   e,
				Odd:       rnd(b[0], b[1]),
			})
		}
	}
	return quotes
}

// drawResult sorteia a ordem de chegada completa
func (s *simRace) drawResult() *events.RaceResult {
	order := make([]int, len(s.entrants))
	copy(order, s.entrants)
	rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	res := &events.RaceResult{
		Winner: order[0],
		Order:  order,
	}
	if len(order) >= 2 {
		res.Place = []int{order[0], order[1]}
	}
	if len(order) >= 3 {
		res.Show = []int{order[0], order[1], order[2]}
	}
	// Vencedores por perna (dupla e pick 3) derivados da própria ordem;
	// num fornecedor real viriam das corridas seguintes do programa
	res.LegWinners = map[int]int{1: order[0]}
	if len(order) >= 2 {
		res.LegWinners[2] = order[1]
	}
	if len(order) >= 3 {
		res.LegWinners[3] = order[2]
	}
	return res
}

// gera número aleatório entre min e max
func rnd(min, max float64) float64 {
	return (rand.Float64() * (max - min)) + min
}

func main() {
	cfg := config.Load()
	log, err := logger.New("racecard-simulator", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	rand.Seed(time.Now().UnixNano())

	prometheus.MustRegister(wsConnections, wsMessagesSent, racesFinished)

	h := newHub(log)

	// Um páreo ativo por pista; ao encerrar, abre o próximo número
	races := make([]*simRace, len(tracks))
	nextNumber := make([]int, len(tracks))
	for i, t := range tracks {
		nextNumber[i] = 1
		races[i] = newSimRace(t, nextNumber[i])
	}

	// Avança o cartão e envia as atualizações a cada 3 segundos
	go func() {
		ticker := time.NewTicker(3 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			for i, r := range races {
				upd := r.advance("racecard-simulator")
				h.broadcast(upd)
				if upd.Status == "finished" {
					log.Info("race finished",
						zap.String("race_id", r.raceID),
						zap.Int("winner", upd.Result.Winner),
					)
					nextNumber[i]++
					races[i] = newSimRace(r.track, nextNumber[i])
				}
			}
		}
	}()

	// ==== MUX PÚBLICO (HTTP principal): /ws
	appMux := http.NewServeMux()

	appMux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("ws upgrade failed", zap.Error(err))
			return
		}
		id := fmt.Sprintf("%d", time.Now().UnixNano())
		c := &clientConn{id: id, conn: conn}
		h.add(c)

		// Goroutine para manter a conexão viva e remover cliente ao desconectar
		go func() {
			defer func() {
				h.remove(id)
				_ = conn.Close()
			}()
			_ = conn.SetReadDeadline(time.Time{})
			for {
				// Lê e descarta mensagens do cliente para manter o socket limpo
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})

	// ==== MUX DE MÉTRICAS (/healthz, /metrics)
	metricsMux := http.NewServeMux()
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsMux.Handle("/metrics", promhttp.Handler())

	go func() {
		metricsAddr := fmt.Sprintf(":%s", cfg.MetricsPort)
		log.Info("racecard simulator (metrics) running",
			zap.String("addr", metricsAddr),
			zap.String("paths", "/healthz,/metrics"),
		)
		if err := http.ListenAndServe(metricsAddr, metricsMux); err != nil {
			log.Fatal("metrics server error", zap.Error(err))
		}
	}()

	publicAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	log.Info("racecard simulator (public) running",
		zap.String("addr", publicAddr),
		zap.String("paths", "/ws"),
	)
	if err := http.ListenAndServe(publicAddr, appMux); err != nil {
		log.Fatal("public server error", zap.Error(err))
	}
}
