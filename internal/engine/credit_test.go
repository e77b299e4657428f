package engine

import (
	"testing"

	"github.com/talgya/sugarscape/internal/agents"
)

func TestAmountDueSimpleInterest(t *testing.T) {
	l := NewLedger(0.05, 10)
	ln := l.Originate(1, 2, 8, 1)
	if got := l.AmountDue(ln); got != 12 {
		t.Fatalf("due on 8 at 5%%x10 = %d, want 12", got)
	}
	ln2 := l.Originate(1, 2, 10, 1)
	if got := l.AmountDue(ln2); got != 15 {
		t.Fatalf("due on 10 = %d, want 15", got)
	}
}

// Scenario: a post-fertile neighbor lends a fertile agent the shortfall to
// its reproduction threshold.
func TestOriginateLoanToShortfall(t *testing.T) {
	sim := bareSim(t, 5, 5, nil)
	borrower := place(t, sim, 1, 2, 2)
	borrower.Age = 20
	borrower.Sugar, borrower.InitialSugar = 2, 10
	lender := place(t, sim, 2, 3, 2)
	lender.Age, lender.Sugar = 60, 30 // post-fertile: may lend half

	sim.creditPhase()

	if sim.Stats.LoansOriginated != 1 || sim.Stats.LoanVolume != 8 {
		t.Fatalf("origination stats %+v", sim.Stats)
	}
	if borrower.Sugar != 10 || lender.Sugar != 22 {
		t.Fatalf("holdings %d/%d, want 10/22", borrower.Sugar, lender.Sugar)
	}
	loans := sim.Ledger.Loans()
	if len(loans) != 1 {
		t.Fatalf("%d loans outstanding, want 1", len(loans))
	}
	ln := loans[0]
	if ln.Lender != 2 || ln.Borrower != 1 || ln.Principal != 8 {
		t.Fatalf("loan %+v", ln)
	}
	if ln.Due != sim.Tick+uint64(sim.Cfg.Credit.Duration) {
		t.Fatalf("due tick %d, want %d", ln.Due, sim.Tick+uint64(sim.Cfg.Credit.Duration))
	}
}

func TestFertileLenderLendsOnlyExcess(t *testing.T) {
	sim := bareSim(t, 5, 5, nil)
	borrower := place(t, sim, 1, 2, 2)
	borrower.Age = 20
	borrower.Sugar, borrower.InitialSugar = 0, 50
	borrower.Sugar = 1 // positive income, not yet dead
	lender := place(t, sim, 2, 3, 2)
	lender.Age, lender.Sugar = 20, 30 // fertile: may lend above its threshold of 20

	sim.creditPhase()

	if sim.Stats.LoanVolume != 10 {
		t.Fatalf("volume %d, want the lender's excess 10", sim.Stats.LoanVolume)
	}
	if lender.Sugar != 20 {
		t.Fatalf("lender at %d, want drawn down to its threshold 20", lender.Sugar)
	}
}

func TestNoLoanWithoutIncome(t *testing.T) {
	sim := bareSim(t, 5, 5, nil)
	borrower := place(t, sim, 1, 2, 2)
	borrower.Age = 20
	borrower.Sugar, borrower.InitialSugar = 2, 10
	borrower.LastHarvest = 1 // harvest did not cover metabolism
	lender := place(t, sim, 2, 3, 2)
	lender.Age, lender.Sugar = 60, 30

	sim.creditPhase()

	if sim.Ledger.Count() != 0 {
		t.Fatal("an agent running a deficit must not borrow")
	}
}

func TestNoLoanWhenDebtServiceEatsIncome(t *testing.T) {
	sim := bareSim(t, 5, 5, nil)
	borrower := place(t, sim, 1, 2, 2)
	borrower.Age = 20
	borrower.Sugar, borrower.InitialSugar = 2, 10
	borrower.LastHarvest = 3 // net income 2 after metabolism 1
	lender := place(t, sim, 2, 3, 2)
	lender.Age, lender.Sugar = 60, 30

	// Carrying 20 costs 30/10 = 3 per tick, more than the net income.
	sim.Ledger.Originate(2, 1, 20, sim.Tick)
	if sim.borrowerEligible(borrower) {
		t.Fatal("a borrower whose debt service exceeds net income must not qualify")
	}

	// A small loan amortizes to 1 per tick and leaves room to borrow.
	sim.Ledger.loans = nil
	sim.Ledger.Originate(2, 1, 5, sim.Tick)
	if !sim.borrowerEligible(borrower) {
		t.Fatal("a borrower whose income covers its debt service must stay eligible")
	}
}

func TestFullRepaymentOnDue(t *testing.T) {
	sim := bareSim(t, 7, 7, nil)
	borrower := place(t, sim, 1, 2, 2)
	borrower.Sugar = 20
	lender := place(t, sim, 2, 5, 5)
	lender.Sugar = 20

	sim.Ledger.Originate(2, 1, 8, 1) // due 11, amount 12
	sim.Tick = 11

	sim.settleDueLoans()

	if borrower.Sugar != 8 || lender.Sugar != 32 {
		t.Fatalf("holdings %d/%d after repayment, want 8/32", borrower.Sugar, lender.Sugar)
	}
	if sim.Ledger.Count() != 0 || sim.Stats.LoansRepaid != 1 {
		t.Fatalf("ledger %d loans, repaid %d", sim.Ledger.Count(), sim.Stats.LoansRepaid)
	}
}

// Scenario: two loans against the same borrower fall due at once. They settle
// in separate batches: the first sees the pre-batch wealth 10 and refinances
// 7; the second sees the remaining 5 and refinances 10.
func TestSimultaneousDuesSettleInBatches(t *testing.T) {
	sim := bareSim(t, 7, 7, nil)
	borrower := place(t, sim, 1, 2, 2)
	borrower.Sugar = 10
	lenderA := place(t, sim, 2, 5, 5)
	lenderA.Sugar = 0
	lenderB := place(t, sim, 3, 6, 6)
	lenderB.Sugar = 0

	sim.Ledger.Originate(2, 1, 8, 1) // due 11, amount 12
	sim.Ledger.Originate(3, 1, 8, 1)
	sim.Tick = 11

	sim.settleDueLoans()

	if borrower.Sugar != 3 {
		t.Fatalf("borrower at %d, want 10-5-2=3", borrower.Sugar)
	}
	if lenderA.Sugar != 5 || lenderB.Sugar != 2 {
		t.Fatalf("lenders received %d and %d, want 5 and 2", lenderA.Sugar, lenderB.Sugar)
	}
	loans := sim.Ledger.Loans()
	if len(loans) != 2 || sim.Stats.LoansRefinanced != 2 {
		t.Fatalf("%d loans, %d refinanced, want 2/2", len(loans), sim.Stats.LoansRefinanced)
	}
	principals := map[agents.AgentID]int{}
	for _, ln := range loans {
		principals[ln.Lender] = ln.Principal
		if ln.Due != 21 {
			t.Fatalf("refinanced loan due %d, want 21", ln.Due)
		}
	}
	if principals[2] != 7 || principals[3] != 10 {
		t.Fatalf("refinanced principals %v, want 7 for lender 2 and 10 for lender 3", principals)
	}
}

func TestDisperseReassignsToHeirs(t *testing.T) {
	l := NewLedger(0.05, 10)
	l.ReassignHook = func(agents.AgentID) []agents.AgentID { return []agents.AgentID{5, 6} }
	l.Originate(1, 2, 7, 3)

	var stats TickStats
	l.Disperse(1, &stats)

	loans := l.Loans()
	if len(loans) != 2 {
		t.Fatalf("%d loans after reassignment, want 2", len(loans))
	}
	for _, ln := range loans {
		if ln.Principal != 3 || ln.Borrower != 2 || ln.Origin != 3 || ln.Due != 13 {
			t.Fatalf("heir loan %+v, want principal 3 on the original terms", ln)
		}
	}
	if loans[0].Lender == loans[1].Lender {
		t.Fatal("each heir must receive its own position")
	}
}

func TestDisperseForgivesTinyOrHeirlessLoans(t *testing.T) {
	l := NewLedger(0.05, 10)
	l.Originate(1, 2, 1, 3) // share would round to zero even with heirs
	l.ReassignHook = func(agents.AgentID) []agents.AgentID { return []agents.AgentID{5, 6} }

	var stats TickStats
	l.Disperse(1, &stats)
	if l.Count() != 0 || stats.LoansForgiven != 1 {
		t.Fatalf("ledger %d, forgiven %d, want 0/1", l.Count(), stats.LoansForgiven)
	}

	l.ReassignHook = nil
	l.Originate(1, 2, 9, 3)
	l.Disperse(1, &stats)
	if l.Count() != 0 || stats.LoansForgiven != 2 {
		t.Fatal("lender death without heirs must forgive")
	}
}

func TestDisperseDefaultsBorrowerDebt(t *testing.T) {
	l := NewLedger(0.05, 10)
	l.Originate(1, 2, 9, 3)
	l.Originate(3, 4, 5, 3)

	var stats TickStats
	l.Disperse(2, &stats)

	if l.Count() != 1 || stats.LoansDefaulted != 1 {
		t.Fatalf("ledger %d, defaulted %d, want 1/1", l.Count(), stats.LoansDefaulted)
	}
	if l.Loans()[0].Lender != 3 {
		t.Fatal("unrelated loan must survive")
	}
}
