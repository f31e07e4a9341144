// Package scenario runs controlled attack campaigns against the analysis
// service and summarizes how many lines were detected.
package scenario

// Scenario is a named, ordered batch of log lines.
type Scenario struct {
	Name string   `json:"name"`
	Logs []string `json:"logs"`
}

var (
	normalLogs = []string{
		"Jan 30 10:45:23 server sshd[2345]: Accepted password for alice from 192.168.1.10 port 54321 ssh2",
		"Jan 30 10:46:01 server sshd[2346]: Accepted publickey for bob from 192.168.1.25 port 54322 ssh2",
		"Jan 30 10:47:15 server sshd[2347]: Accepted password for john from 10.0.0.5 port 54323 ssh2",
		"Jan 30 10:48:32 server sshd[2348]: Accepted password for sarah from 172.16.0.42 port 54324 ssh2",
		"Jan 30 10:49:45 server sshd[2349]: Accepted password for admin from 192.168.1.10 port 54325 ssh2",
	}

	bruteForceLogs = []string{
		"Jan 30 11:00:01 server sshd[3000]: Failed password for invalid user root from 91.200.12.74 port 45001 ssh2 [preauth] (attempt 1/50)",
		"Jan 30 11:00:02 server sshd[3001]: Failed password for invalid user admin from 91.200.12.74 port 45002 ssh2 [preauth] (attempt 2/50)",
		"Jan 30 11:00:03 server sshd[3002]: Failed password for invalid user oracle from 91.200.12.74 port 45003 ssh2 [preauth] (attempt 3/50)",
		"Jan 30 11:00:04 server sshd[3003]: Failed password for invalid user test from 91.200.12.74 port 45004 ssh2 [preauth] (attempt 4/50)",
		"Jan 30 11:00:05 server sshd[3004]: Failed password for invalid user root from 91.200.12.74 port 45005 ssh2 [preauth] (attempt 5/50)",
	}

	portScanLogs = []string{
		"Jan 30 11:15:01 firewall kernel: PORT SCAN DROP from 185.216.34.99 to port 22",
		"Jan 30 11:15:02 firewall kernel: PORT SCAN DROP from 185.216.34.99 to port 80",
		"Jan 30 11:15:03 firewall kernel: PORT SCAN DROP from 185.216.34.99 to port 443",
		"Jan 30 11:15:04 firewall kernel: PORT SCAN DROP from 185.216.34.99 to port 3306",
		"Jan 30 11:15:05 firewall kernel: PORT SCAN DROP from 185.216.34.99 to port 5432",
	}
)

// Builtin returns the four standard campaigns in run order.
func Builtin() []Scenario {
	mixed := make([]string, 0, 11)
	mixed = append(mixed, normalLogs...)
	mixed = append(mixed, bruteForceLogs[:2]...)
	mixed = append(mixed, normalLogs[1:3]...)
	mixed = append(mixed, portScanLogs[:2]...)

	return []Scenario{
		{Name: "Trafic Normal (Baseline)", Logs: append([]string(nil), normalLogs...)},
		{Name: "Brute Force SSH", Logs: append([]string(nil), bruteForceLogs...)},
		{Name: "Port Scanning", Logs: append([]string(nil), portScanLogs...)},
		{Name: "Trafic Mixte (Normal + Attaques)", Logs: mixed},
	}
}

// Find returns the builtin scenario with the given name.
func Find(name string) (Scenario, bool) {
	for _, s := range Builtin() {
		if s.Name == name {
			return s, true
		}
	}
	return Scenario{}, false
}
