package scenario

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Kind of a generated line
type Kind string

const (
	KindNormal     Kind = "normal"
	KindBruteForce Kind = "brute_force"
	KindPortScan   Kind = "port_scan"
)

var (
	normalIPs   = []string{"192.168.1.10", "192.168.1.25", "10.0.0.5", "172.16.0.42"}
	attackIPs   = []string{"91.200.12.74", "176.10.99.200", "185.216.34.99"}
	normalUsers = []string{"alice", "bob", "john", "sarah", "admin"}
	targetUsers = []string{"root", "admin", "oracle", "test"}
	scanPorts   = []int{22, 80, 443, 3306, 5432, 8080}
)

// syslog style "Jan 02 15:04:05"
const syslogLayout = "Jan 02 15:04:05"

// Generator emits synthetic sshd and firewall lines: 70% normal logins,
// 20% brute force, 10% port scans. Same seed, same sequence.
type Generator struct {
	rng *rand.Rand
	Now func() time.Time
}

func NewGenerator(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), Now: time.Now}
}

// Next returns one line and its kind.
func (g *Generator) Next() (Kind, string) {
	ts := g.Now().Format(syslogLayout)
	switch p := g.rng.Float64(); {
	case p < 0.70:
		return KindNormal, fmt.Sprintf("%s server sshd[1234]: Accepted password for %s from %s port %d ssh2",
			ts, pick(g.rng, normalUsers), pick(g.rng, normalIPs), g.port())
	case p < 0.90:
		return KindBruteForce, fmt.Sprintf("%s server sshd[5678]: Failed password for invalid user %s from %s port %d ssh2 [preauth] (attempt %d/50)",
			ts, pick(g.rng, targetUsers), pick(g.rng, attackIPs), g.port(), 10+g.rng.IntN(41))
	default:
		return KindPortScan, fmt.Sprintf("%s firewall kernel: PORT SCAN DETECTED from %s to port %d",
			ts, pick(g.rng, attackIPs), pick(g.rng, scanPorts))
	}
}

func (g *Generator) port() int { return 30000 + g.rng.IntN(30001) }

func pick[T any](rng *rand.Rand, xs []T) T { return xs[rng.IntN(len(xs))] }
