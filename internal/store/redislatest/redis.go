// Package redislatest obaluje libovolný store a drží poslední čtení každého senzoru
// ve Valkey/Redis ("hot path" pro status). Historie zůstává v obaleném store.
package redislatest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/RadouaneGaroiaz/mqtt-project/internal/store"
)

// TTL: mrtvé senzory z cache po dni zmizí, dotaz pak spadne do DB.
const TTL = 24 * time.Hour

// Store je dekorátor: zápisy jdou do obaleného store a pak do Redisu, Latest čte nejdřív Redis.
type Store struct {
	store.Store
	redis  *redis.Client
	logger *slog.Logger

	// dirty jsou senzory, u kterých se nepodařilo přepsat ani smazat klíč.
	// Jejich hodnota v cache může být starší než DB, Latest ji obchází.
	mu    sync.Mutex
	dirty map[string]bool
}

// New obalí inner. Klient rdb má být ověřený pingem, Close ho zavře.
func New(inner store.Store, rdb *redis.Client, logger *slog.Logger) *Store {
	return &Store{Store: inner, redis: rdb, logger: logger, dirty: make(map[string]bool)}
}

// Key musí být stejný pro zápis i čtení.
func Key(sensorID string) string {
	return fmt.Sprintf("sensor:last:%s", sensorID)
}

// Append zapíše nejdřív do systému záznamu. Chyba Redisu se jen zaloguje:
// data už v DB jsou a opakování by je zduplikovalo.
func (s *Store) Append(ctx context.Context, sensorID string, r store.Reading) error {
	if err := s.Store.Append(ctx, sensorID, r); err != nil {
		return err
	}

	r.SensorID = sensorID
	payload, err := json.Marshal(r)
	if err != nil {
		s.invalidate(ctx, sensorID, err)
		return nil
	}
	if err := s.redis.Set(ctx, Key(sensorID), payload, TTL).Err(); err != nil {
		s.invalidate(ctx, sensorID, err)
		return nil
	}
	s.setDirty(sensorID, false)
	return nil
}

// invalidate smaže klíč, aby v cache nezůstala starší hodnota než v DB.
// Když nejde ani smazat, senzor se označí jako dirty až do dalšího úspěšného Set.
func (s *Store) invalidate(ctx context.Context, sensorID string, cause error) {
	s.logger.Warn("Chyba update Valkey, mažu klíč", "sensor_id", sensorID, "error", cause)
	if err := s.redis.Del(ctx, Key(sensorID)).Err(); err != nil {
		s.logger.Error("Nelze smazat klíč ve Valkey", "sensor_id", sensorID, "error", err)
		s.setDirty(sensorID, true)
	}
}

func (s *Store) setDirty(sensorID string, dirty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dirty {
		s.dirty[sensorID] = true
	} else {
		delete(s.dirty, sensorID)
	}
}

func (s *Store) isDirty(sensorID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty[sensorID]
}

// Latest vrací hodnotu z cache. Při chybě, miss nebo dirty senzoru čte z obaleného store.
func (s *Store) Latest(ctx context.Context, sensorID string) (*store.Reading, error) {
	if s.isDirty(sensorID) {
		return s.Store.Latest(ctx, sensorID)
	}

	raw, err := s.redis.Get(ctx, Key(sensorID)).Bytes()
	switch {
	case err == nil:
		var r store.Reading
		if jsonErr := json.Unmarshal(raw, &r); jsonErr == nil {
			return &r, nil
		}
		s.logger.Warn("Poškozená hodnota ve Valkey", "sensor_id", sensorID)
	case !errors.Is(err, redis.Nil):
		s.logger.Warn("Valkey nedostupný, čtu z DB", "sensor_id", sensorID, "error", err)
	}

	r, err := s.Store.Latest(ctx, sensorID)
	if err != nil || r == nil {
		return r, err
	}

	// SetNX: souběžný Append mohl mezitím zapsat novější hodnotu, tu nepřepisujeme.
	if payload, err := json.Marshal(r); err == nil {
		s.redis.SetNX(ctx, Key(sensorID), payload, TTL)
	}
	return r, nil
}

// Close zavře Redis i obalený store.
func (s *Store) Close() error {
	rerr := s.redis.Close()
	if err := s.Store.Close(); err != nil {
		return err
	}
	return rerr
}
