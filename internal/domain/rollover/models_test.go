package rollover

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestDefaultAllocations(t *testing.T) {
	policy := DefaultAllocations()

	want := map[LeaveType]int64{
		LeaveEarned:       12,
		LeaveSick:         8,
		LeaveCasual:       8,
		LeaveCompensation: 0,
	}
	if len(policy) != len(want) {
		t.Fatalf("expected %d leave types, got %d", len(want), len(policy))
	}
	for lt, days := range want {
		if !policy.For(lt).Equal(decimal.NewFromInt(days)) {
			t.Fatalf("expected %s allocation %d, got %s", lt, days, policy.For(lt))
		}
	}
}

func TestAllocationPolicyForUnknownType(t *testing.T) {
	policy := DefaultAllocations()
	if !policy.For(LeaveType("sabbatical")).IsZero() {
		t.Fatal("unknown leave types should allocate zero days")
	}
}

func TestLeaveTypeValid(t *testing.T) {
	for _, lt := range LeaveTypes() {
		if !lt.Valid() {
			t.Fatalf("%s should be valid", lt)
		}
	}
	if LeaveType("unpaid").Valid() {
		t.Fatal("unpaid is not a rollover leave type")
	}
}
