package assignment

import (
	"fmt"
	"slices"
	"strings"

	"github.com/mcoot/partytasks/internal/dependencies/random"
	"github.com/mcoot/partytasks/internal/model"
)

// MinPlayers is the smallest roster a round can be dealt for
const MinPlayers = 2

// Plan is a complete, unpersisted deal for one round
type Plan struct {
	// Order is the roster order the plan was dealt in
	Order []model.UserID
	// Tasks holds exactly model.TasksPerUser assignments per user
	Tasks map[model.UserID][]model.TaskAssignment
	// TaskIDs lists every consumed template id in deal order
	TaskIDs []model.TaskID
	// TargetCounts is how many times each user was chosen as a target
	TargetCounts map[model.UserID]int
}

// BuildPlan deals model.TasksPerUser templates to every user.
//
// Picks are dealt round-robin: one pick per user per pass, in roster order,
// for model.TasksPerUser passes. Each pick takes the next template of the
// shuffled pool and a target other than its owner. Targets with the lowest
// running count win; among those, the ones with the fewest picks left in
// which they could still be chosen win; any remaining tie is broken with rnd.
//
// Round-robin order and the picks-left tie-break are chosen for balance.
// Dealing each owner's picks in one go with a plain lowest-count rule can
// leave a late user with only targets already at the maximum, so target
// counts would drift more than one apart. With both rules every user in a
// roster of 3 to 10 is targeted exactly model.TasksPerUser times.
func BuildPlan(users []*model.User, templates []*model.TaskTemplate, rnd random.Random) (*Plan, error) {
	n := len(users)
	if n < MinPlayers {
		return nil, fmt.Errorf("%w: have %d, need %d", model.ErrInsufficientPlayers, n, MinPlayers)
	}
	required := n * model.TasksPerUser
	if len(templates) < required {
		return nil, fmt.Errorf("%w: need %d, have %d", model.ErrInsufficientTemplates, required, len(templates))
	}
	for _, t := range templates {
		if !model.IsValidTaskIDFormat(t.ID) {
			return nil, fmt.Errorf("%w: %q", model.ErrInvalidTaskID, t.ID)
		}
	}

	pool := slices.Clone(templates)
	random.Shuffle(rnd, pool)

	plan := &Plan{
		Order:        make([]model.UserID, 0, n),
		Tasks:        make(map[model.UserID][]model.TaskAssignment, n),
		TaskIDs:      make([]model.TaskID, 0, required),
		TargetCounts: make(map[model.UserID]int, n),
	}
	remaining := make(map[model.UserID]int, n)
	for _, u := range users {
		plan.Order = append(plan.Order, u.ID)
		plan.TargetCounts[u.ID] = 0
		remaining[u.ID] = model.TasksPerUser * (n - 1)
	}

	used := make(map[model.TaskID]struct{}, required)
	next := 0
	for pass := 0; pass < model.TasksPerUser; pass++ {
		for _, owner := range users {
			candidates := make([]*model.User, 0, n-1)
			for _, u := range users {
				if u.ID != owner.ID {
					remaining[u.ID]--
					candidates = append(candidates, u)
				}
			}

			// Skip ids already consumed, in case the pool carries duplicates
			for next < len(pool) {
				if _, dup := used[pool[next].ID]; !dup {
					break
				}
				next++
			}
			if next >= len(pool) {
				break
			}
			tmpl := pool[next]
			next++

			target := pickTarget(candidates, plan.TargetCounts, remaining, rnd)
			assignment, err := bind(owner, target, tmpl)
			if err != nil {
				return nil, err
			}

			used[tmpl.ID] = struct{}{}
			plan.TargetCounts[target.ID]++
			plan.Tasks[owner.ID] = append(plan.Tasks[owner.ID], assignment)
			plan.TaskIDs = append(plan.TaskIDs, tmpl.ID)
		}
	}

	for _, u := range users {
		if got := len(plan.Tasks[u.ID]); got != model.TasksPerUser {
			return nil, fmt.Errorf("%w: user %s has %d of %d tasks",
				model.ErrIncompleteAssignment, u.ID, got, model.TasksPerUser)
		}
	}
	return plan, nil
}

func pickTarget(candidates []*model.User, counts, remaining map[model.UserID]int, rnd random.Random) *model.User {
	var ties []*model.User
	for _, c := range candidates {
		if len(ties) == 0 {
			ties = append(ties, c)
			continue
		}
		best := ties[0]
		switch {
		case counts[c.ID] < counts[best.ID],
			counts[c.ID] == counts[best.ID] && remaining[c.ID] < remaining[best.ID]:
			ties = append(ties[:0], c)
		case counts[c.ID] == counts[best.ID] && remaining[c.ID] == remaining[best.ID]:
			ties = append(ties, c)
		}
	}
	if len(ties) == 1 {
		return ties[0]
	}
	return ties[rnd.Intn(len(ties))]
}

func bind(owner, target *model.User, tmpl *model.TaskTemplate) (model.TaskAssignment, error) {
	text := strings.TrimSpace(tmpl.Text)
	if text == "" {
		return model.TaskAssignment{}, fmt.Errorf("%w: template %s has no text (user %s)",
			model.ErrDataIntegrity, tmpl.ID, owner.ID)
	}
	name := strings.TrimSpace(target.Name)
	if name == "" {
		return model.TaskAssignment{}, fmt.Errorf("%w: target %s has no name (user %s, template %s)",
			model.ErrDataIntegrity, target.ID, owner.ID, tmpl.ID)
	}
	return model.TaskAssignment{
		TaskID:       tmpl.ID,
		TaskText:     text,
		TargetUserID: target.ID,
		TargetName:   name,
	}, nil
}
