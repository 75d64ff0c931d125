package lavalink

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
)

// NodeManager owns the pool of node connections and the single player
// registry they all share. It is the entry point other subsystems use to
// obtain a node or a session.
type NodeManager struct {
	mu      sync.RWMutex
	nodes   []*Node
	players *AudioPlayerManager
	gateway Gateway
}

// NewNodeManager creates a manager with an empty pool. Every node added
// later shares the same player registry, so a session created via any node
// is visible network-wide.
func NewNodeManager(gateway Gateway, listener EventListener) *NodeManager {
	return &NodeManager{
		players: NewAudioPlayerManager(listener),
		gateway: gateway,
	}
}

// Players returns the shared session registry.
func (m *NodeManager) Players() *AudioPlayerManager {
	return m.players
}

// AddNode connects a new node and appends it to the pool. A connect
// failure leaves the pool untouched. A node whose loops finish, whether
// through Close or a transport failure, is evicted so selection cannot
// keep handing out a connection that no longer delivers.
func (m *NodeManager) AddNode(cfg NodeConfig) error {
	node, err := Connect(cfg, m.players, m.gateway)
	if err != nil {
		return fmt.Errorf("add node: %w", err)
	}

	m.mu.Lock()
	m.nodes = append(m.nodes, node)
	m.mu.Unlock()

	go func() {
		<-node.Done()
		slog.Info("evicting finished node", "node", node.ID(), "host", node.WebSocketHost)
		m.RemoveNode(node)
	}()
	return nil
}

// RemoveNode drops a dead or unwanted node from the pool and closes it.
func (m *NodeManager) RemoveNode(node *Node) {
	m.mu.Lock()
	for i, n := range m.nodes {
		if n == node {
			m.nodes = append(m.nodes[:i], m.nodes[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	node.Close()
}

// Nodes returns a snapshot of the current pool.
func (m *NodeManager) Nodes() []*Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	nodes := make([]*Node, len(m.nodes))
	copy(nodes, m.nodes)
	return nodes
}

// BestNode scans the pool once and returns the node with the lowest
// penalty, ties going to the earliest-added node. A node without stats
// scores 0 and is therefore provisionally preferred; that policy is pinned
// by tests, so revising it is a deliberate act. Returns nil on an empty
// pool.
func (m *NodeManager) BestNode() *Node {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *Node
	record := math.MaxInt

	for _, node := range m.nodes {
		total, err := Penalty(node)
		if err != nil {
			total = 0
		}
		if total < record {
			best = node
			record = total
		}
	}
	return best
}

// Penalty computes a node's load score; lower is better. The exponential
// terms punish nodes near CPU saturation or already dropping frames far
// harder than the flat per-playing-session term spreads baseline load.
// Returns ErrNoStats until the node's first stats message.
func Penalty(node *Node) (int, error) {
	stats, ok := node.Stats()
	if !ok {
		return 0, ErrNoStats
	}

	cpu := math.Pow(1.05, 100*stats.CPU.SystemLoad)*10 - 10

	var deficit, nulled float64
	if fs := stats.FrameStats; fs != nil {
		deficit = math.Pow(1.03, 500*float64(fs.Deficit)/3000)*300 - 300
		nulled = (math.Pow(1.03, 500*float64(fs.Nulled)/3000)*300 - 300) * 2
	}

	return stats.PlayingPlayers + int(math.Floor(cpu)) + int(math.Floor(deficit)) + int(math.Floor(nulled)), nil
}

// Close shuts down every node in the pool and empties it. Nodes that
// already failed close without complaint.
func (m *NodeManager) Close() {
	m.mu.Lock()
	nodes := m.nodes
	m.nodes = nil
	m.mu.Unlock()

	for _, node := range nodes {
		node.Close()
	}
	slog.Info("node manager closed", "nodes", len(nodes))
}
