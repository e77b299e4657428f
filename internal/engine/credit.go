package engine

import (
	"fmt"
	"math"

	"github.com/talgya/sugarscape/internal/agents"
	"github.com/talgya/sugarscape/internal/decision"
)

// Loan is one outstanding credit position. Interest is simple:
// amount due = principal × (1 + rate × duration).
type Loan struct {
	Lender    agents.AgentID `json:"lender"`
	Borrower  agents.AgentID `json:"borrower"`
	Principal int            `json:"principal"`
	Origin    uint64         `json:"origin"`
	Due       uint64         `json:"due"`
}

// Ledger owns all outstanding loans. It never touches agent wealth on death
// dispersal: a borrower's death is the lender's loss, a lender's death
// forgives the loan unless the reassignment hook yields living heirs.
type Ledger struct {
	rate     float64
	duration int
	loans    []*Loan

	// ReassignHook, when set, returns the living children of a dead lender;
	// the lender's positions are then split across them instead of being
	// forgiven. Installed by the simulation when inheritance is active.
	ReassignHook func(lender agents.AgentID) []agents.AgentID
}

// NewLedger creates an empty ledger with the configured terms.
func NewLedger(rate float64, duration int) *Ledger {
	return &Ledger{rate: rate, duration: duration}
}

// Count returns the number of outstanding loans.
func (l *Ledger) Count() int { return len(l.loans) }

// Loans returns the outstanding loans. Callers must not mutate the slice.
func (l *Ledger) Loans() []*Loan { return l.loans }

// AmountDue computes the simple-interest repayment for a loan.
func (l *Ledger) AmountDue(ln *Loan) int {
	return ln.Principal + int(math.Round(float64(ln.Principal)*l.rate*float64(l.duration)))
}

// Originate records a new loan. The principal transfer is the caller's job.
func (l *Ledger) Originate(lender, borrower agents.AgentID, principal int, tick uint64) *Loan {
	ln := &Loan{
		Lender:    lender,
		Borrower:  borrower,
		Principal: principal,
		Origin:    tick,
		Due:       tick + uint64(l.duration),
	}
	l.loans = append(l.loans, ln)
	return ln
}

// DebtService returns the borrower's per-tick cost of carrying its
// outstanding loans, amortizing each amount due evenly over the loan
// duration (minimum 1 per loan).
func (l *Ledger) DebtService(borrower agents.AgentID) int {
	total := 0
	for _, ln := range l.loans {
		if ln.Borrower != borrower {
			continue
		}
		per := l.AmountDue(ln) / l.duration
		if per < 1 {
			per = 1
		}
		total += per
	}
	return total
}

// References reports whether any outstanding loan still names the id.
// The registry consults this before recycling an identifier.
func (l *Ledger) References(id agents.AgentID) bool {
	for _, ln := range l.loans {
		if ln.Lender == id || ln.Borrower == id {
			return true
		}
	}
	return false
}

// Disperse resolves every loan referencing a dead agent. Runs after the
// agent's inheritance and before its removal from the registry.
func (l *Ledger) Disperse(dead agents.AgentID, stats *TickStats) {
	var kept []*Loan
	for _, ln := range l.loans {
		switch {
		case ln.Borrower == dead:
			// Borrower died before the due date: the lender eats the loss.
			stats.LoansDefaulted++
		case ln.Lender == dead:
			var heirs []agents.AgentID
			if l.ReassignHook != nil {
				heirs = l.ReassignHook(dead)
			}
			share := 0
			if len(heirs) > 0 {
				share = ln.Principal / len(heirs)
			}
			if share == 0 {
				stats.LoansForgiven++
				continue
			}
			for _, h := range heirs {
				kept = append(kept, &Loan{
					Lender:    h,
					Borrower:  ln.Borrower,
					Principal: share,
					Origin:    ln.Origin,
					Due:       ln.Due,
				})
			}
		default:
			kept = append(kept, ln)
		}
	}
	l.loans = kept
}

// creditPhase settles due loans, then originates new ones.
func (s *Simulation) creditPhase() {
	s.settleDueLoans()
	s.originateLoans()
}

// settleDueLoans partitions this tick's due loans into conflict-free batches
// (at most one loan per borrower each) and processes batches sequentially.
// Within a batch every loan settles against a consistent pre-batch wealth
// snapshot, so simultaneous dues see the same borrower state.
func (s *Simulation) settleDueLoans() {
	var due []*Loan
	for _, ln := range s.Ledger.loans {
		if ln.Due <= s.Tick {
			due = append(due, ln)
		}
	}

	for len(due) > 0 {
		batch := due[:0]
		var rest []*Loan
		inBatch := make(map[agents.AgentID]bool)
		for _, ln := range due {
			if inBatch[ln.Borrower] {
				rest = append(rest, ln)
				continue
			}
			inBatch[ln.Borrower] = true
			batch = append(batch, ln)
		}

		snapshot := make(map[agents.AgentID]int, len(batch))
		for _, ln := range batch {
			if b := s.Registry.Get(ln.Borrower); b != nil {
				snapshot[ln.Borrower] = b.Sugar
			}
		}
		for _, ln := range batch {
			s.settle(ln, snapshot[ln.Borrower])
		}
		due = rest
	}
}

// settle repays a due loan in full when the pre-batch wealth covers it;
// otherwise the borrower pays half its pre-batch wealth and the unpaid
// remainder is refinanced into a fresh loan due duration ticks from now.
func (s *Simulation) settle(ln *Loan, snapWealth int) {
	borrower := s.Registry.Get(ln.Borrower)
	lender := s.Registry.Get(ln.Lender)
	if borrower == nil || lender == nil {
		// Referenced agent died this tick; Disperse already handled it.
		return
	}
	dueAmt := s.Ledger.AmountDue(ln)
	if snapWealth >= dueAmt {
		borrower.Sugar -= dueAmt
		lender.Sugar += dueAmt
		s.removeLoan(ln)
		s.Stats.LoansRepaid++
		return
	}
	pay := snapWealth / 2
	if pay < 0 {
		pay = 0
	}
	borrower.Sugar -= pay
	lender.Sugar += pay
	remainder := dueAmt - pay
	s.removeLoan(ln)
	s.Ledger.Originate(ln.Lender, ln.Borrower, remainder, s.Tick)
	s.Stats.LoansRefinanced++
}

func (s *Simulation) removeLoan(target *Loan) {
	for i, ln := range s.Ledger.loans {
		if ln == target {
			s.Ledger.loans = append(s.Ledger.loans[:i], s.Ledger.loans[i+1:]...)
			return
		}
	}
}

// borrowerEligible: fertile, below the reproduction threshold, and running a
// positive net income after metabolism and the cost of servicing loans it
// already carries.
func (s *Simulation) borrowerEligible(a *agents.Agent) bool {
	return s.fertilityWindow(a.Sex).Contains(a.Age) &&
		a.Sugar < a.InitialSugar &&
		a.LastHarvest-a.Metabolism > s.Ledger.DebtService(a.ID)
}

// lendingCapacity: post-fertile agents may lend half their wealth; fertile
// agents may lend the excess above their reproduction threshold.
func (s *Simulation) lendingCapacity(a *agents.Agent) int {
	if s.postFertile(a) {
		return a.Sugar / 2
	}
	if s.fertilityWindow(a.Sex).Contains(a.Age) && a.Sugar > a.InitialSugar {
		return a.Sugar - a.InitialSugar
	}
	return 0
}

// originateLoans matches each eligible borrower with eligible neighbor
// lenders. The provider picks the lender order; each match lends the lesser
// of the borrower's remaining need and the lender's current capacity.
func (s *Simulation) originateLoans() {
	for _, a := range s.Registry.Shuffled(s.Rng) {
		if !a.Alive || !s.borrowerEligible(a) {
			continue
		}

		var lenders []*agents.Agent
		for _, b := range s.adjacentAgents(a.Position) {
			if s.lendingCapacity(b) > 0 {
				lenders = append(lenders, b)
			}
		}
		if len(lenders) == 0 {
			continue
		}
		s.Rng.Shuffle(len(lenders), func(i, j int) {
			lenders[i], lenders[j] = lenders[j], lenders[i]
		})

		ids := make([]uint64, len(lenders))
		for i, b := range lenders {
			ids[i] = uint64(b.ID)
		}
		req := decision.Request{
			Phase:    decision.PhaseCredit,
			Tick:     s.Tick,
			AgentID:  uint64(a.ID),
			Position: a.Position,
			Sugar:    a.Sugar,
			Vision:   a.Vision,
			Partners: ids,
			Traits:   a.Traits,
		}
		d := s.decide(req)
		chosen := decision.FilterPartners(req, d.Partners)
		if len(d.Partners) > len(chosen) {
			s.Stats.DecisionDowngrades++
		}

		required := a.InitialSugar - a.Sugar
		for _, lid := range chosen {
			if required <= 0 {
				break
			}
			lender := s.Registry.Get(agents.AgentID(lid))
			if lender == nil {
				continue
			}
			amount := min(required, s.lendingCapacity(lender))
			if amount <= 0 {
				continue
			}
			s.Ledger.Originate(lender.ID, a.ID, amount, s.Tick)
			lender.Sugar -= amount
			a.Sugar += amount
			required -= amount
			s.Stats.LoansOriginated++
			s.Stats.LoanVolume += amount
			s.Events = append(s.Events, Event{
				Tick:        s.Tick,
				Description: fmt.Sprintf("agent %d lent %d to agent %d", lender.ID, amount, a.ID),
				Category:    "credit",
			})
		}
	}
}
