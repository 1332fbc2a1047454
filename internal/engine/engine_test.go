package engine

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dv(f float64) *decimal.Decimal {
	d := decimal.NewFromFloat(f)
	return &d
}

func TestCheckNodesRiseLevels(t *testing.T) {
	// (583-575)/575*100 = 1.3913% → 触发 1 级，不触发 2 级
	nodes := CheckNodes(
		decimal.NewFromFloat(583.00),
		decimal.NewFromFloat(575.00),
		BaselinePrevClose,
		[3]*decimal.Decimal{dv(1.0), dv(2.0), nil},
		[3]*decimal.Decimal{},
	)
	if len(nodes) != 1 {
		t.Fatalf("expected 1 triggered node, got %d", len(nodes))
	}
	n := nodes[0]
	if n.Kind != KindRise || n.Level != 1 || n.Baseline != BaselinePrevClose {
		t.Fatalf("unexpected node: %+v", n)
	}
	if n.ChangePercent.StringFixed(4) != "1.3913" {
		t.Fatalf("changePercent = %s", n.ChangePercent.StringFixed(4))
	}
}

func TestCheckNodesDuplicateThresholds(t *testing.T) {
	// rise = [1.0, 1.0, 2.0]，涨幅 1.5% → 仅 1 级（重复值首个槽位生效）
	nodes := CheckNodes(
		decimal.NewFromFloat(101.5),
		decimal.NewFromFloat(100),
		BaselinePrevClose,
		[3]*decimal.Decimal{dv(1.0), dv(1.0), dv(2.0)},
		[3]*decimal.Decimal{},
	)
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node after dedup, got %d", len(nodes))
	}
	if nodes[0].Level != 1 {
		t.Fatalf("duplicate value should resolve to level 1, got %d", nodes[0].Level)
	}
}

func TestCheckNodesFallSymmetric(t *testing.T) {
	// 跌幅 2% → fall 的 1、2 级同时触发
	nodes := CheckNodes(
		decimal.NewFromFloat(98),
		decimal.NewFromFloat(100),
		BaselineOpenPosition,
		[3]*decimal.Decimal{dv(1.0)},
		[3]*decimal.Decimal{dv(1.0), dv(2.0), dv(5.0)},
	)
	if len(nodes) != 2 {
		t.Fatalf("expected 2 fall nodes, got %d", len(nodes))
	}
	for _, n := range nodes {
		if n.Kind != KindFall {
			t.Fatalf("expected FALL, got %s", n.Kind)
		}
		if n.ChangePercent.Sign() >= 0 {
			t.Fatalf("fall changePercent must stay negative, got %s", n.ChangePercent)
		}
	}
	if nodes[0].Level != 1 || nodes[1].Level != 2 {
		t.Fatalf("levels = %d,%d", nodes[0].Level, nodes[1].Level)
	}
}

func TestCheckNodesZeroChange(t *testing.T) {
	nodes := CheckNodes(
		decimal.NewFromFloat(100),
		decimal.NewFromFloat(100),
		BaselinePrevClose,
		[3]*decimal.Decimal{dv(0.0001)},
		[3]*decimal.Decimal{dv(0.0001)},
	)
	if len(nodes) != 0 {
		t.Fatalf("0%% change must trigger nothing, got %d", len(nodes))
	}
}

func TestCheckNodesInvalidReference(t *testing.T) {
	for _, ref := range []float64{0, -1} {
		nodes := CheckNodes(
			decimal.NewFromFloat(100),
			decimal.NewFromFloat(ref),
			BaselinePrevClose,
			[3]*decimal.Decimal{dv(1.0)},
			[3]*decimal.Decimal{dv(1.0)},
		)
		if nodes != nil {
			t.Fatalf("refPrice=%v 应跳过评估", ref)
		}
	}
}

func TestCheckNodesIgnoresNonPositiveThresholds(t *testing.T) {
	nodes := CheckNodes(
		decimal.NewFromFloat(110),
		decimal.NewFromFloat(100),
		BaselinePrevClose,
		[3]*decimal.Decimal{dv(0), dv(-1), dv(5)},
		[3]*decimal.Decimal{},
	)
	if len(nodes) != 1 || nodes[0].Level != 3 {
		t.Fatalf("only the positive slot should fire: %+v", nodes)
	}
}

func TestCheckNodesDeterministic(t *testing.T) {
	rise := [3]*decimal.Decimal{dv(0.5), dv(1.0), dv(2.0)}
	var fall [3]*decimal.Decimal
	first := CheckNodes(decimal.NewFromFloat(101.2), decimal.NewFromFloat(100), BaselinePrevClose, rise, fall)
	for i := 0; i < 10; i++ {
		again := CheckNodes(decimal.NewFromFloat(101.2), decimal.NewFromFloat(100), BaselinePrevClose, rise, fall)
		if len(again) != len(first) {
			t.Fatal("evaluation must be deterministic")
		}
		for j := range again {
			a, b := again[j], first[j]
			if a.Kind != b.Kind || a.Baseline != b.Baseline || a.Level != b.Level ||
				!a.ChangePercent.Equal(b.ChangePercent) || !a.RefPrice.Equal(b.RefPrice) {
				t.Fatalf("run %d node %d differs: %+v vs %+v", i, j, a, b)
			}
		}
	}
}

func TestMaxDailySends(t *testing.T) {
	for level := 1; level <= 3; level++ {
		if MaxDailySends(level) != level {
			t.Fatalf("level %d cap should equal level", level)
		}
	}
}

func TestCheckTargetEQ(t *testing.T) {
	price := decimal.NewFromFloat(580.00)
	if !CheckTarget(price, decimal.NewFromFloat(580.005), CmpEQ) {
		t.Fatal("580.00 vs 580.005 在 0.01 容差内，应触发")
	}
	if CheckTarget(price, decimal.NewFromFloat(580.02), CmpEQ) {
		t.Fatal("580.00 vs 580.02 超出容差，不应触发")
	}
}

func TestCheckTargetGTELTE(t *testing.T) {
	price := decimal.NewFromFloat(600)
	if !CheckTarget(price, decimal.NewFromFloat(600), CmpGTE) {
		t.Fatal("GTE 等值应触发")
	}
	if CheckTarget(price, decimal.NewFromFloat(601), CmpGTE) {
		t.Fatal("GTE 低于目标不应触发")
	}
	if !CheckTarget(price, decimal.NewFromFloat(600), CmpLTE) {
		t.Fatal("LTE 等值应触发")
	}
	if CheckTarget(price, decimal.NewFromFloat(599), CmpLTE) {
		t.Fatal("LTE 高于目标不应触发")
	}
}

func TestCheckTargetUnknownComparator(t *testing.T) {
	if !CheckTarget(decimal.NewFromFloat(601), decimal.NewFromFloat(600), "BOGUS") {
		t.Fatal("未知比较符应退化为 GTE")
	}
	if CheckTarget(decimal.NewFromFloat(599), decimal.NewFromFloat(600), "") {
		t.Fatal("空比较符退化为 GTE 时低于目标不应触发")
	}
}
