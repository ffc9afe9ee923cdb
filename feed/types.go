// Package feed defines the payloads the game hub pushes and the display
// helpers that render them with placeholders for absent fields.
package feed

import (
	"bytes"
	"encoding/json"
)

// Snapshot keeps a pushed payload verbatim next to its best-effort typed
// decoding. Valid is false when Raw is absent, null, or did not decode
// into T; Value is then whatever could be filled in.
type Snapshot[T any] struct {
	Raw   json.RawMessage
	Value T
	Valid bool
}

// Decode never fails: malformed payloads come back with Valid unset and
// Raw preserved.
func Decode[T any](raw json.RawMessage) Snapshot[T] {
	s := Snapshot[T]{Raw: Compact(raw)}
	if IsAbsent(raw) {
		return s
	}
	s.Valid = json.Unmarshal(raw, &s.Value) == nil
	return s
}

// String returns the compact JSON of the payload, "null" when absent.
func (s Snapshot[T]) String() string {
	return string(Compact(s.Raw))
}

// IsAbsent reports whether a payload was omitted or JSON null.
func IsAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// IsArray reports whether a payload is a JSON array.
func IsArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// IsObject reports whether a payload is a JSON object.
func IsObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// Compact returns raw without insignificant whitespace. Absent payloads
// and payloads that are not valid JSON are returned as "null" and as-is.
func Compact(raw json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage("null")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return append(json.RawMessage(nil), raw...)
	}
	return json.RawMessage(buf.Bytes())
}

// ============================================================================
// Live game
// ============================================================================

// Drive is one unit of possession and its plays.
type Drive struct {
	DriveID          int    `json:"driveId"`
	GameID           int    `json:"gameId"`
	Quarter          *int   `json:"quarter,omitempty"`
	PossessionTeamID *int   `json:"possessionTeamId,omitempty"`
	Plays            []Play `json:"plays,omitempty"`
	PlayCount        int    `json:"playCount"`
}

// Play is a single in-game action.
type Play struct {
	ID                    int             `json:"id"`
	GameID                int             `json:"gameId"`
	PlayTypeName          *string         `json:"playTypeName,omitempty"`
	PlayDescription       *string         `json:"playDescription,omitempty"`
	Yards                 *int            `json:"yards,omitempty"`
	Time                  *string         `json:"time,omitempty"`
	Down                  *int            `json:"down,omitempty"`
	Distance              *int            `json:"distance,omitempty"`
	StartPossessionTeamID *int            `json:"startPossessionTeamId,omitempty"`
	Quarter               *int            `json:"quarter,omitempty"`
	Donations             []Donation      `json:"donations,omitempty"`
	GroupDonations        []GroupDonation `json:"groupDonations,omitempty"`
}

type Donation struct {
	Amount    float64 `json:"amount"`
	DonorName *string `json:"donorName,omitempty"`
	UserID    *int    `json:"userId,omitempty"`
}

type GroupDonation struct {
	GroupID          int           `json:"groupId"`
	GroupName        string        `json:"groupName"`
	FavoriteTeamID   int           `json:"favoriteTeamId"`
	Amount           float64       `json:"amount"`
	LeaderID         int           `json:"leaderId"`
	GroupMemberCount int           `json:"groupMemberCount"`
	GroupMembers     []GroupMember `json:"groupMembers"`
}

type GroupMember struct {
	UserID       int     `json:"userId"`
	UserName     string  `json:"userName"`
	FirstName    *string `json:"firstName,omitempty"`
	LastName     *string `json:"lastName,omitempty"`
	ProfileImage *string `json:"profileImage,omitempty"`
	Amount       float64 `json:"amount"`
}

// ============================================================================
// Scoreboard
// ============================================================================

// LiveScore is a score snapshot. The same shape is broadcast on the open
// channel for every live game.
type LiveScore struct {
	GameID        *int    `json:"gameId,omitempty"`
	HomeTeamID    *int    `json:"homeTeamId,omitempty"`
	AwayTeamID    *int    `json:"awayTeamId,omitempty"`
	HomeTeamScore *int    `json:"homeTeamScore,omitempty"`
	AwayTeamScore *int    `json:"awayTeamScore,omitempty"`
	Quarter       *int    `json:"quarter,omitempty"`
	Time          *string `json:"time,omitempty"`
	GameStatus    *string `json:"gameStatus,omitempty"`
}

// VirtualField is the ball position and down/distance for the current play.
type VirtualField struct {
	GameID                *int    `json:"gameId,omitempty"`
	BallOnAbb             *string `json:"ballOnAbb,omitempty"`
	BallOnYards           *int    `json:"ballOnYards,omitempty"`
	FirstDownMarkerAbb    *string `json:"firstDownMarkerAbb,omitempty"`
	FirstDownMarkerYards  *int    `json:"firstDownMarkerYards,omitempty"`
	Distance              *int    `json:"distance,omitempty"`
	Down                  *int    `json:"down,omitempty"`
	StartPossessionTeamID *int    `json:"startPossessionTeamId,omitempty"`
	IsOpponent            *bool   `json:"isOpponent,omitempty"`
}

type TotalDonations struct {
	GameID             *int            `json:"gameId,omitempty"`
	TotalTeamDonations []TeamDonations `json:"totalTeamDonations,omitempty"`
}

type TeamDonations struct {
	TeamID         *int     `json:"teamId,omitempty"`
	TotalDonations *float64 `json:"totalDonations,omitempty"`
}
