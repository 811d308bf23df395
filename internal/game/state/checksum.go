package state

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// Checksum computes a deterministic SHA-256 digest of a state snapshot.
// The representation sorts every map by key, so two states that are equal
// field-for-field always hash identically regardless of map iteration
// order. Timestamps are excluded; the digest covers game-relevant state
// only, which lets tests assert the determinism property and lets replay
// tooling guard against divergent snapshots.
func Checksum(s *GameState) string {
	var buf bytes.Buffer

	winner := 0
	if s.Winner != nil {
		winner = int(*s.Winner)
	}
	fmt.Fprintf(&buf, "GAME:%s|%s|%s|%d|%d|%d\n",
		s.MatchID, s.GameID, s.Status, s.TurnNumber, s.CurrentPlayer, winner)

	for _, num := range []PlayerNumber{Player1, Player2} {
		p := s.Players[num]
		if p == nil {
			continue
		}
		fmt.Fprintf(&buf, "PLAYER:%d|%s|%d|%d|%d|%d|%d|%d\n",
			num, p.ID, p.Health, p.MaxHealth, p.Mana, p.MaxMana, p.Overload, p.Fatigue)
	}

	for _, zoneID := range s.ZoneIDs() {
		zone := s.Zones[zoneID]
		owner := 0
		if zone.Owner != nil {
			owner = int(*zone.Owner)
		}
		fmt.Fprintf(&buf, "ZONE:%s|%s|%d|%d\n", zone.ID, zone.Name, owner, len(zone.Cards))
		for _, c := range zone.Cards {
			fmt.Fprintf(&buf, "  CARD:%s|%s|%d|%d|%d|%d|%d|%d|%t|%t|%t|%d\n",
				c.InstanceID, c.CardID, c.Owner, c.Controller, c.Position,
				c.CurrentStats.Cost, c.CurrentStats.Attack, c.CurrentStats.Health,
				c.CanAttack, c.SummoningSickness, c.IsDead, c.AttacksLeft)
			keywords := make([]string, 0, len(c.Keywords))
			for _, k := range c.Keywords {
				v := 0
				if k.Value != nil {
					v = *k.Value
				}
				keywords = append(keywords, fmt.Sprintf("%s=%d", k.Name, v))
			}
			sort.Strings(keywords)
			for _, k := range keywords {
				fmt.Fprintf(&buf, "    KEYWORD:%s\n", k)
			}
			for _, m := range c.Modifiers {
				fmt.Fprintf(&buf, "    MODIFIER:%s|%s|%s|%d\n", m.ID, m.Type, m.Stat, m.Amount)
			}
		}
	}

	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}
