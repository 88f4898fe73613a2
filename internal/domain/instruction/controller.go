package instruction

import (
	"github.com/ryanyen2/Scholet/internal/domain/selection"
	"github.com/ryanyen2/Scholet/internal/infrastructure/monitoring/logging"
)

// Reduce returns the facets of one target after ins. It is the only place
// that relates facets to each other: highlight and obscure exclude one
// another, grouping implies selection and removal clears everything.
func Reduce(f selection.Facets, ins Instruction) selection.Facets {
	switch ins.Kind {
	case KindAdd:
		f.Selected = true
	case KindRemove:
		f = selection.Facets{}
	case KindHighlight:
		f.Highlighted = true
		f.Obscured = false
	case KindObscure:
		f.Obscured = true
		f.Highlighted = false
	case KindGroup:
		f.Group = ins.Label
		f.Selected = true
	}
	return f
}

// Store is the write side of selection state used by the Controller.
type Store interface {
	Update(key string, fn func(selection.Facets) selection.Facets) selection.Facets
}

// Result summarizes one applied batch.
type Result struct {
	// Applied counts instructions that reached selection state.
	Applied int `json:"applied"`
	// Skipped counts GENERAL_CONTEXT instructions.
	Skipped int `json:"skipped"`
	// Touched lists the keys written, in first-write order.
	Touched []string `json:"touched"`
}

// Controller applies instruction batches to a Store, one instruction at a
// time in batch order. Targets need not exist in the entity set.
type Controller struct {
	store  Store
	logger logging.Logger
}

// NewController returns a Controller writing to store.
func NewController(store Store, logger logging.Logger) *Controller {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Controller{store: store, logger: logger}
}

// Apply validates the whole batch and then applies it. An invalid batch
// leaves state untouched.
func (c *Controller) Apply(batch []Instruction) (Result, error) {
	if err := ValidateBatch(batch); err != nil {
		c.logger.Warn("instruction batch rejected", logging.Err(err), logging.Int("size", len(batch)))
		return Result{}, err
	}

	res := Result{Touched: []string{}}
	seen := make(map[string]struct{})
	for _, ins := range batch {
		if ins.Kind == KindGeneral {
			res.Skipped++
			continue
		}
		for _, target := range ins.Targets {
			c.store.Update(target, func(f selection.Facets) selection.Facets {
				return Reduce(f, ins)
			})
			if _, ok := seen[target]; !ok {
				seen[target] = struct{}{}
				res.Touched = append(res.Touched, target)
			}
		}
		res.Applied++
	}
	return res, nil
}

// ApplyMessage validates m and applies its instructions.
func (c *Controller) ApplyMessage(m Message) (Result, error) {
	if err := m.Validate(); err != nil {
		c.logger.Warn("message rejected", logging.Int64("message_id", m.ID), logging.Err(err))
		return Result{}, err
	}
	res, err := c.Apply(m.Instructions)
	if err != nil {
		return Result{}, err
	}
	c.logger.Info("message applied",
		logging.Int64("message_id", m.ID),
		logging.String("role", string(m.Role)),
		logging.Int("applied", res.Applied),
		logging.Int("touched", len(res.Touched)),
	)
	return res, nil
}
