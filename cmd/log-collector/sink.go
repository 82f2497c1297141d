package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var errBadTopic = errors.New("log topic must be logs/<service>")

// Sink zapisuje řádky logů do souboru <dir>/<služba>.log.
// Pattern Open-Write-Close na každý zápis, aby fungovala rotace přes logrotate.
type Sink struct {
	dir string
	mu  sync.Mutex
}

// NewSink založí adresář, pokud neexistuje.
func NewSink(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir %s: %w", dir, err)
	}
	return &Sink{dir: dir}, nil
}

// ServiceName vytáhne název služby z topicu logs/<služba>[/...].
// Název se stává jménem souboru, takže nesmí obsahovat cestu.
func ServiceName(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 || parts[0] != "logs" {
		return "", fmt.Errorf("%w: %q", errBadTopic, topic)
	}
	name := parts[1]
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `\:`) {
		return "", fmt.Errorf("%w: %q", errBadTopic, topic)
	}
	return name, nil
}

// Append připíše payload jako jeden řádek. MQTT payload konec řádku mít nemusí.
func (s *Sink) Append(topic string, payload []byte) error {
	name, err := ServiceName(topic)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(s.dir, name+".log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line := strings.TrimRight(string(payload), "\n") + "\n"
	_, err = f.WriteString(line)
	return err
}
