package analytics

import (
	"fmt"

	"github.com/sakif/analysis-sandbox/internal/table"
)

// Fixture tables carry both sides of each pairing plus a difficulty rating
// seen from each side.
const (
	homeEntityColumn     = "home_entity"
	awayEntityColumn     = "away_entity"
	homeDifficultyColumn = "home_difficulty"
	awayDifficultyColumn = "away_difficulty"
	finishedColumn       = "finished"
)

type FixtureOptions struct {
	// LastN is how many fixtures to return, default 5.
	LastN int
	// PeriodColumn orders the fixtures, default "period".
	PeriodColumn string
}

// FixtureDifficulty extracts one entity's schedule from a fixtures table.
// Each returned row resolves which side the entity played on and picks the
// matching difficulty column. When the table has a "finished" column,
// unplayed fixtures are preferred (the next N of them); if every fixture is
// finished the most recent N are returned instead. Output columns are the
// period, the opponent, is_home and difficulty, ascending by period.
func FixtureDifficulty(fixtures *table.Table, entity any, opts FixtureOptions) (*table.Table, error) {
	if opts.LastN <= 0 {
		opts.LastN = DefaultLastN
	}
	if opts.PeriodColumn == "" {
		opts.PeriodColumn = DefaultPeriodColumn
	}

	home, err := fixtures.Column(homeEntityColumn)
	if err != nil {
		return nil, err
	}
	away, err := fixtures.Column(awayEntityColumn)
	if err != nil {
		return nil, err
	}
	homeDiff, err := fixtures.Column(homeDifficultyColumn)
	if err != nil {
		return nil, err
	}
	awayDiff, err := fixtures.Column(awayDifficultyColumn)
	if err != nil {
		return nil, err
	}
	periods, err := fixtures.Column(opts.PeriodColumn)
	if err != nil {
		return nil, err
	}

	var idx []int
	for i := 0; i < fixtures.NumRows(); i++ {
		if table.CellsEqual(home[i], entity) || table.CellsEqual(away[i], entity) {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return nil, fmt.Errorf("entity %q appears in no fixture rows", table.AsString(entity))
	}
	sortIndexesByCells(idx, periods, false)

	if fixtures.HasColumn(finishedColumn) {
		finished, err := fixtures.Column(finishedColumn)
		if err != nil {
			return nil, err
		}
		var upcoming []int
		for _, i := range idx {
			if done, ok := finished[i].(bool); !ok || !done {
				upcoming = append(upcoming, i)
			}
		}
		if len(upcoming) > 0 {
			idx = upcoming
		} else if len(idx) > opts.LastN {
			// Everything already played: keep the most recent.
			idx = idx[len(idx)-opts.LastN:]
		}
	}
	if len(idx) > opts.LastN {
		idx = idx[:opts.LastN]
	}

	names := []string{opts.PeriodColumn, "opponent", "is_home", "difficulty"}
	cols := make([][]any, len(names))
	for _, i := range idx {
		isHome := table.CellsEqual(home[i], entity)
		opponent, difficulty := home[i], awayDiff[i]
		if isHome {
			opponent, difficulty = away[i], homeDiff[i]
		}
		cols[0] = append(cols[0], periods[i])
		cols[1] = append(cols[1], opponent)
		cols[2] = append(cols[2], isHome)
		cols[3] = append(cols[3], difficulty)
	}
	return table.FromColumns(names, cols)
}
