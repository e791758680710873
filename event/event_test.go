package event

import (
	"encoding/json"
	"testing"
)

func TestDependent(t *testing.T) {
	x := ResourceId{Kind: ResourceVar, Owner: 0, Seq: 1}
	y := ResourceId{Kind: ResourceVar, Owner: 0, Seq: 2}
	tests := []struct {
		a, b Signature
		dep  bool
	}{
		{Signature{KindWrite, x}, Signature{KindWrite, x}, true},
		{Signature{KindRead, x}, Signature{KindWrite, x}, true},
		{Signature{KindRead, x}, Signature{KindRead, x}, false},
		{Signature{KindWrite, x}, Signature{KindWrite, y}, false},
		{Signature{KindYield, ResourceId{}}, Signature{KindYield, ResourceId{}}, false},
		{Signature{KindJoin, TaskResource(1)}, Signature{KindTaskEnd, TaskResource(1)}, true},
		{Signature{KindJoin, TaskResource(1)}, Signature{KindJoin, TaskResource(1)}, false},
	}
	for i, test := range tests {
		if got := Dependent(test.a, test.b); got != test.dep {
			t.Errorf("%v: Dependent(%v, %v). Expected %v got %v", i, test.a, test.b, test.dep, got)
		}
		if got := Dependent(test.b, test.a); got != test.dep {
			t.Errorf("%v: Dependent should be symmetric", i)
		}
	}
}

func TestResourceString(t *testing.T) {
	if s := (ResourceId{Kind: ResourceLock, Owner: 2, Seq: 3}).String(); s != "lock:2.3" {
		t.Errorf("Expected lock:2.3. Got %v", s)
	}
	if s := NamedResource(ResourceRPC, "/svc/Call").String(); s != "rpc:/svc/Call" {
		t.Errorf("Expected rpc:/svc/Call. Got %v", s)
	}
	if s := TaskResource(4).String(); s != "task4" {
		t.Errorf("Expected task4. Got %v", s)
	}
}

func TestDecisionJSON(t *testing.T) {
	in := []Decision{Schedule(0), Choice(1, 3), Schedule(2)}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	var out []Decision
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("Expected %v decisions. Got %v", len(in), len(out))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("Decision %v changed. Expected %v got %v", i, in[i], out[i])
		}
	}
}
