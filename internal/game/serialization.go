package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/thraizz/crowd-server-go/internal/game/cards"
	"github.com/thraizz/crowd-server-go/internal/game/rules"
	"github.com/thraizz/crowd-server-go/internal/game/side"
)

// SessionSnapshot is a value copy of a session after a tick, used for
// replays and divergence checks.
type SessionSnapshot struct {
	GameID     string
	Tick       uint64
	Status     Status
	Phase      rules.Phase
	Active     side.Side
	TurnNumber int
	IconIndex  int
	Sides      [len(side.All)]SideSnapshot
	Timestamp  time.Time
}

// SideSnapshot holds one side's zones in order.
type SideSnapshot struct {
	HP          HitPoints
	Crowd       int
	Deck        []CardSnapshot
	Hand        []CardSnapshot
	Battlefield []CardSnapshot
}

// CardSnapshot is the mutable part of a card plus its definition name.
type CardSnapshot struct {
	ID     string
	Name   string
	HP     int
	FaceUp bool
	Legal  bool
}

// Snapshot captures the current session state.
func (s *Session) Snapshot() *SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() *SessionSnapshot {
	turn := s.turn.State()
	snap := &SessionSnapshot{
		GameID:     s.id,
		Tick:       s.ticks,
		Status:     s.status,
		Phase:      turn.Phase,
		Active:     turn.Active,
		TurnNumber: turn.TurnNumber,
		IconIndex:  turn.IconIndex,
		Timestamp:  time.Now(),
	}
	for _, sd := range side.All {
		snap.Sides[sd] = SideSnapshot{
			HP:          s.hp[sd],
			Crowd:       s.ledger.Crowd(sd),
			Deck:        snapshotCards(s.zones.Deck(sd)),
			Hand:        snapshotCards(s.zones.Hand(sd)),
			Battlefield: snapshotCards(s.zones.Battlefield(sd)),
		}
	}
	return snap
}

func snapshotCards(cs []*cards.Card) []CardSnapshot {
	out := make([]CardSnapshot, len(cs))
	for i, card := range cs {
		out[i] = CardSnapshot{
			ID:     card.ID,
			Name:   card.Name(),
			HP:     card.HP,
			FaceUp: card.FaceUp,
			Legal:  card.Legal,
		}
	}
	return out
}

// SerializationChecksum is a deterministic fingerprint of a snapshot.
type SerializationChecksum struct {
	Hash      string // SHA-256 of the deterministic representation
	Timestamp string
	Version   int
}

// ComputeChecksum hashes the snapshot. Card ids, the game id and the
// timestamp are left out so two sessions that played the same moves from
// the same decks hash equal; zone order is kept because it is significant.
func (snapshot *SessionSnapshot) ComputeChecksum() (*SerializationChecksum, error) {
	hash := sha256.New()
	if _, err := hash.Write([]byte(snapshot.buildDeterministicRepresentation())); err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}

	return &SerializationChecksum{
		Hash:      hex.EncodeToString(hash.Sum(nil)),
		Timestamp: snapshot.Timestamp.Format("2006-01-02T15:04:05.000Z"),
		Version:   1,
	}, nil
}

func (snapshot *SessionSnapshot) buildDeterministicRepresentation() string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "GAME:%d|%d|%s|%s|%d|%d\n",
		snapshot.Tick,
		snapshot.Status,
		snapshot.Phase,
		snapshot.Active,
		snapshot.TurnNumber,
		snapshot.IconIndex,
	)

	for i, sd := range snapshot.Sides {
		fmt.Fprintf(&buf, "SIDE:%s|%d/%d|%d\n", side.Side(i), sd.HP.Current, sd.HP.Max, sd.Crowd)
		writeZone(&buf, "DECK", sd.Deck)
		writeZone(&buf, "HAND", sd.Hand)
		writeZone(&buf, "BATTLEFIELD", sd.Battlefield)
	}

	return buf.String()
}

func writeZone(buf *bytes.Buffer, name string, zone []CardSnapshot) {
	fmt.Fprintf(buf, "  %s:%d\n", name, len(zone))
	for i, card := range zone {
		fmt.Fprintf(buf, "    %d:%s|%d|%t|%t\n", i, card.Name, card.HP, card.FaceUp, card.Legal)
	}
}

// VerifyChecksum reports whether the snapshot still hashes to expected.
func (snapshot *SessionSnapshot) VerifyChecksum(expected *SerializationChecksum) (bool, error) {
	computed, err := snapshot.ComputeChecksum()
	if err != nil {
		return false, fmt.Errorf("failed to compute checksum: %w", err)
	}

	return computed.Hash == expected.Hash, nil
}

// SerializeToBytes gob-encodes the snapshot.
func (snapshot *SessionSnapshot) SerializeToBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snapshot); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeFromBytes decodes a gob-encoded snapshot.
func DeserializeFromBytes(data []byte) (*SessionSnapshot, error) {
	var snapshot SessionSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snapshot, nil
}

// ValidateSerializationRoundtrip checks that encoding and decoding keep the checksum.
func ValidateSerializationRoundtrip(snapshot *SessionSnapshot) error {
	originalChecksum, err := snapshot.ComputeChecksum()
	if err != nil {
		return fmt.Errorf("failed to compute original checksum: %w", err)
	}

	data, err := snapshot.SerializeToBytes()
	if err != nil {
		return fmt.Errorf("failed to serialize: %w", err)
	}

	deserialized, err := DeserializeFromBytes(data)
	if err != nil {
		return fmt.Errorf("failed to deserialize: %w", err)
	}

	deserializedChecksum, err := deserialized.ComputeChecksum()
	if err != nil {
		return fmt.Errorf("failed to compute deserialized checksum: %w", err)
	}

	if originalChecksum.Hash != deserializedChecksum.Hash {
		return fmt.Errorf("checksum mismatch: original=%s, deserialized=%s",
			originalChecksum.Hash, deserializedChecksum.Hash)
	}

	return nil
}
