// Beacond runs a randomness beacon: it maintains one braid chain in a local
// database and appends a commit-reveal pulse entry every period.
package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/multiformats/go-multihash"
	"go.uber.org/zap"

	"github.com/braidchain/pulse/foundation/braid"
	"github.com/braidchain/pulse/foundation/braid/memchain"
	"github.com/braidchain/pulse/foundation/braid/storage"
	"github.com/braidchain/pulse/foundation/logger"
	"github.com/braidchain/pulse/foundation/pulse"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("BEACOND")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Beacon struct {
			Period      time.Duration `conf:"default:60s"`
			Hasher      string        `conf:"default:sha3-256"`
			DBPath      string        `conf:"default:zpulse/pulse.db"`
			KeyPath     string        `conf:"default:zpulse/beacon.rsa"`
			SessionPath string        `conf:"default:zpulse/session.json"`
			KeyBits     int           `conf:"default:2048"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "copyright information here",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "BEACOND"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	traceID := uuid.NewString()

	log.Infow("starting service", "version", build, "traceid", traceID)
	defer log.Infow("shutdown complete", "traceid", traceID)

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out, "traceid", traceID)

	hashCode, ok := multihash.Names[cfg.Beacon.Hasher]
	if !ok {
		return fmt.Errorf("unknown hash algorithm %q", cfg.Beacon.Hasher)
	}
	digestLen, ok := multihash.DefaultLengths[hashCode]
	if !ok {
		return fmt.Errorf("hash algorithm %q has no default digest length", cfg.Beacon.Hasher)
	}

	// =========================================================================
	// Chain Support

	store, err := storage.New(cfg.Beacon.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	key, err := loadOrCreateKey(cfg.Beacon.KeyPath, cfg.Beacon.KeyBits)
	if err != nil {
		return fmt.Errorf("load beacon key: %w", err)
	}

	signer, err := memchain.NewSignerFromRSA(braid.AlgSHA256RSA, key)
	if err != nil {
		return err
	}
	builder := memchain.NewBuilder(signer)

	header, err := loadOrCreateHeader(store, builder, hashCode, cfg.Beacon.Period)
	if err != nil {
		return fmt.Errorf("load header: %w", err)
	}
	log.Infow("startup", "status", "chain header ready", "chain", hexutil.Encode(header.Hash()), "traceid", traceID)

	// =========================================================================
	// Session State

	// The commit-reveal session state must survive restarts: once an entry
	// commits to a value, that exact value has to be revealed one period
	// later or the chain dead-ends.
	sess, err := loadSession(cfg.Beacon.SessionPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load session: %w", err)
	}

	last, lastPos, err := latestEntry(store, header)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("load latest entry: %w", err)
	}

	switch {
	case last != nil && sess == nil:
		return errors.New("chain has entries but the session state is missing: the pending commitment cannot be revealed")

	case sess == nil:
		sess = &session{}
		if sess.Current, err = drawRandom(digestLen); err != nil {
			return err
		}
		if sess.Next, err = drawRandom(digestLen); err != nil {
			return err
		}
		if err := saveSession(cfg.Beacon.SessionPath, sess); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
	}

	pb := pulse.NewBuilder(sess.Current, sess.Next)

	// =========================================================================
	// Pulse Loop

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	for {
		entry, err := buildEntry(builder, header, last, pb)
		if err != nil {
			return fmt.Errorf("build entry: %w", err)
		}

		record, err := entry.Encode()
		if err != nil {
			return fmt.Errorf("encode entry: %w", err)
		}
		if err := store.WriteEntry(entry.Hash(), record); err != nil {
			return fmt.Errorf("write entry: %w", err)
		}
		lastPos++

		payload, err := pulse.ExtractPayload(entry)
		if err != nil {
			return fmt.Errorf("extract payload: %w", err)
		}

		log.Infow("pulse", "position", lastPos, "entry", hexutil.Encode(entry.Hash()),
			"timestamp", payload.Timestamp().Format(time.RFC3339), "traceid", traceID)

		if last != nil {
			random, err := pulse.ExtractRandomness(entry, last)
			if err != nil {
				return fmt.Errorf("extract randomness: %w", err)
			}
			log.Infow("randomness", "position", lastPos, "value", hexutil.Encode(random), "traceid", traceID)
		}

		// Advance the commit-reveal state and persist it before the new
		// commitment leaves this process.
		fresh, err := drawRandom(digestLen)
		if err != nil {
			return err
		}
		pb = pb.Advance(fresh)
		sess = &session{Current: sess.Next, Next: fresh}
		if err := saveSession(cfg.Beacon.SessionPath, sess); err != nil {
			return fmt.Errorf("save session: %w", err)
		}

		last = entry

		// Sleep until the next scheduled pulse.
		next := pulse.NextPulseTimestamp(payload.Timestamp(), cfg.Beacon.Period)
		timer := time.NewTimer(time.Until(next))

		select {
		case sig := <-shutdown:
			timer.Stop()
			log.Infow("shutdown", "status", "shutdown started", "signal", sig, "traceid", traceID)
			return nil

		case <-timer.C:
		}
	}
}

// buildEntry constructs the first or next entry depending on chain state.
func buildEntry(builder *memchain.Builder, header *memchain.Header, last *memchain.Entry, pb *pulse.Builder) (*memchain.Entry, error) {
	if last == nil {
		return builder.BuildFirst(header, pb.PayloadFunc())
	}
	return builder.BuildNext(last, pb.PayloadFunc())
}

// latestEntry loads and re-verifies the most recently appended entry.
func latestEntry(store *storage.Store, header *memchain.Header) (*memchain.Entry, uint64, error) {
	pos, hash, err := store.Latest()
	if err != nil {
		return nil, 0, err
	}

	record, err := store.GetEntry(hash)
	if err != nil {
		return nil, 0, err
	}

	entry, err := memchain.DecodeEntry(record, header)
	if err != nil {
		return nil, 0, err
	}

	return entry, pos, nil
}

// loadOrCreateHeader reads the chain header from the store or constructs and
// persists a fresh one on first run.
func loadOrCreateHeader(store *storage.Store, builder *memchain.Builder, hashCode uint64, period time.Duration) (*memchain.Header, error) {
	record, err := store.Header()
	switch {
	case err == nil:
		return memchain.DecodeHeader(record)

	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}

	details := pulse.ChainDetails{Period: pulse.Duration(period)}
	header, err := builder.BuildHeader(hashCode, pulse.SubspecString(), details)
	if err != nil {
		return nil, err
	}

	record, err = header.Encode()
	if err != nil {
		return nil, err
	}
	if err := store.WriteHeader(record); err != nil {
		return nil, err
	}

	return header, nil
}

// loadOrCreateKey reads the beacon's RSA key from disk, generating and
// persisting a fresh one on first run.
func loadOrCreateKey(path string, bits int) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		block, _ := pem.Decode(data)
		if block == nil {
			return nil, fmt.Errorf("no pem block in %s", path)
		}
		return x509.ParsePKCS1PrivateKey(block.Bytes)

	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	block := pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	if err := os.WriteFile(path, pem.EncodeToMemory(&block), 0600); err != nil {
		return nil, err
	}

	return key, nil
}

// =============================================================================

// session is the persisted commit-reveal state: the value the latest entry
// committed to and the freshly drawn value for the entry after it.
type session struct {
	Current hexutil.Bytes `json:"current"`
	Next    hexutil.Bytes `json:"next"`
}

// loadSession reads the session state from disk.
func loadSession(path string) (*session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sess session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}

	return &sess, nil
}

// saveSession persists the session state to disk.
func saveSession(path string, sess *session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// drawRandom draws n bytes from the system entropy source.
func drawRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("draw randomness: %w", err)
	}
	return b, nil
}
