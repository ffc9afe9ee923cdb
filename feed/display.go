package feed

import (
	"fmt"
	"strings"
)

// Placeholder stands in for any field the hub left out.
const Placeholder = "-"

// Field is one labelled display value.
type Field struct {
	Label string
	Value string
}

// Opt formats an optional value, Placeholder when nil.
func Opt[T any](v *T) string {
	if v == nil {
		return Placeholder
	}
	return fmt.Sprint(*v)
}

// YesNo formats an optional flag.
func YesNo(v *bool) string {
	switch {
	case v == nil:
		return Placeholder
	case *v:
		return "Yes"
	default:
		return "No"
	}
}

func joinOpt(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != Placeholder {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return Placeholder
	}
	return strings.Join(kept, " ")
}

// QuarterLabel is "Q<n>" from the play's quarter, else the drive's, else
// Placeholder.
func (p Play) QuarterLabel(d Drive) string {
	switch {
	case p.Quarter != nil:
		return fmt.Sprintf("Q%d", *p.Quarter)
	case d.Quarter != nil:
		return fmt.Sprintf("Q%d", *d.Quarter)
	default:
		return Placeholder
	}
}

// Fields lists a play the way the live game panel shows it.
func (p Play) Fields(d Drive) []Field {
	return []Field{
		{"Type", Opt(p.PlayTypeName)},
		{"Description", Opt(p.PlayDescription)},
		{"Yards", Opt(p.Yards)},
		{"Distance", Opt(p.Distance)},
		{"Start Possession Team ID", Opt(p.StartPossessionTeamID)},
		{"Quarter", p.QuarterLabel(d)},
		{"Time", Opt(p.Time)},
	}
}

// DonationTotal sums individual and group donations on a play.
func (p Play) DonationTotal() float64 {
	var total float64
	for _, d := range p.Donations {
		total += d.Amount
	}
	for _, g := range p.GroupDonations {
		total += g.Amount
	}
	return total
}

func (d Drive) Title() string {
	return fmt.Sprintf("Drive %d  %s  possession %s  plays %d",
		d.DriveID, d.quarterLabel(), Opt(d.PossessionTeamID), d.PlayCount)
}

func (d Drive) quarterLabel() string {
	if d.Quarter == nil {
		return Placeholder
	}
	return fmt.Sprintf("Q%d", *d.Quarter)
}

func (s LiveScore) Fields() []Field {
	return []Field{
		{"Game ID", Opt(s.GameID)},
		{"Home Team ID", Opt(s.HomeTeamID)},
		{"Away Team ID", Opt(s.AwayTeamID)},
		{"Home Score", Opt(s.HomeTeamScore)},
		{"Away Score", Opt(s.AwayTeamScore)},
		{"Quarter", Opt(s.Quarter)},
		{"Time", Opt(s.Time)},
		{"Status", Opt(s.GameStatus)},
	}
}

func (v VirtualField) Fields() []Field {
	return []Field{
		{"Game ID", Opt(v.GameID)},
		{"Ball On", joinOpt(Opt(v.BallOnAbb), Opt(v.BallOnYards))},
		{"First Down Marker", joinOpt(Opt(v.FirstDownMarkerAbb), Opt(v.FirstDownMarkerYards))},
		{"Distance", Opt(v.Distance)},
		{"Down", Opt(v.Down)},
		{"Start Possession Team ID", Opt(v.StartPossessionTeamID)},
		{"Is Opponent", YesNo(v.IsOpponent)},
	}
}

func (t TotalDonations) Fields() []Field {
	fields := []Field{{"Game ID", Opt(t.GameID)}}
	for _, team := range t.TotalTeamDonations {
		fields = append(fields, Field{
			Label: "Team " + Opt(team.TeamID),
			Value: "Total " + Opt(team.TotalDonations),
		})
	}
	return fields
}

// Fielder is implemented by every payload with a display form.
type Fielder interface {
	Fields() []Field
}

// SnapshotFields renders a snapshot, falling back to its raw JSON when it
// is not an object that decoded cleanly.
func SnapshotFields[T Fielder](s Snapshot[T]) []Field {
	if !s.Valid || !IsObject(s.Raw) {
		return []Field{{"Raw", s.String()}}
	}
	return s.Value.Fields()
}
