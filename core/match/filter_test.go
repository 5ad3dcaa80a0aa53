package match

import (
	"testing"
	"time"

	"github.com/haulcommand/dispatchd/core/model"
)

func f64(v float64) *float64 { return &v }

func openLoad() model.Load {
	return model.Load{
		ID:          "ld-1",
		BrokerID:    "br-1",
		OriginLat:   f64(32.7767),
		OriginLng:   f64(-96.797),
		OriginState: "TX",
		DestState:   "OK",
		RateAmount:  f64(1500),
		CreatedAt:   time.Now(),
		Status:      model.LoadOpen,
	}
}

func eligibleEscort(id string) model.Escort {
	return model.Escort{
		EscortID:         id,
		Lat:              f64(32.9),
		Lng:              f64(-96.8),
		VehicleType:      model.VehicleLead,
		InsuranceStatus:  model.StatusVerified,
		ComplianceStatus: model.StatusVerified,
		TrustBase:        f64(80),
	}
}

func TestFilter_AllEligible(t *testing.T) {
	pool := []model.Escort{eligibleEscort("e1"), eligibleEscort("e2")}
	got := Filter(openLoad(), pool, nil, nil)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].DistanceMiles <= 0 {
		t.Errorf("expected positive distance, got %v", got[0].DistanceMiles)
	}
}

func TestFilter_Blocklist(t *testing.T) {
	pool := []model.Escort{eligibleEscort("e1")}
	got := Filter(openLoad(), pool, map[string]bool{"e1": true}, nil)
	if len(got) != 0 {
		t.Fatalf("blocklisted escort must never be scored")
	}
}

func TestFilter_AlreadyOffered(t *testing.T) {
	pool := []model.Escort{eligibleEscort("e1"), eligibleEscort("e2")}
	got := Filter(openLoad(), pool, nil, map[string]bool{"e2": true})
	if len(got) != 1 || got[0].Escort.EscortID != "e1" {
		t.Fatalf("expected only e1, got %+v", got)
	}
}

func TestFilter_Compliance(t *testing.T) {
	bad := eligibleEscort("e1")
	bad.InsuranceStatus = model.StatusPending
	pending := eligibleEscort("e2")
	pending.ComplianceStatus = model.StatusPending
	rejected := eligibleEscort("e3")
	rejected.ComplianceStatus = "rejected"

	got := Filter(openLoad(), []model.Escort{bad, pending, rejected}, nil, nil)
	if len(got) != 1 || got[0].Escort.EscortID != "e2" {
		t.Fatalf("only pending-compliance escort should pass, got %+v", got)
	}
}

func TestFilter_Capability(t *testing.T) {
	ld := openLoad()
	ld.Requirements = model.EscortRequirements{HighPole: true, LeadRequired: true}

	noPole := eligibleEscort("e1")
	poleCar := eligibleEscort("e2")
	poleCar.HighPole = true
	poleCar.VehicleType = model.VehicleHighPole
	chase := eligibleEscort("e3")
	chase.HighPole = true
	chase.VehicleType = model.VehicleChase

	got := Filter(ld, []model.Escort{noPole, poleCar, chase}, nil, nil)
	if len(got) != 1 || got[0].Escort.EscortID != "e2" {
		t.Fatalf("expected only the high-pole lead vehicle, got %+v", got)
	}
}

func TestFilter_PoliceRequired(t *testing.T) {
	ld := openLoad()
	ld.Requirements = model.EscortRequirements{PoliceRequired: true}

	lead := eligibleEscort("e1")
	police := eligibleEscort("e2")
	police.VehicleType = model.VehiclePoliceCoord

	got := Filter(ld, []model.Escort{lead, police}, nil, nil)
	if len(got) != 1 || got[0].Escort.EscortID != "e2" {
		t.Fatalf("expected only the police coordinator, got %+v", got)
	}
}

func TestFilter_MissingLocation(t *testing.T) {
	noLoc := eligibleEscort("e1")
	noLoc.Lat = nil
	got := Filter(openLoad(), []model.Escort{noLoc}, nil, nil)
	if len(got) != 0 {
		t.Fatalf("escort without coordinates must be excluded")
	}

	ld := openLoad()
	ld.OriginLat = nil
	got = Filter(ld, []model.Escort{eligibleEscort("e2")}, nil, nil)
	if len(got) != 0 {
		t.Fatalf("load without origin must yield no candidates")
	}
}

func TestFilter_Radius(t *testing.T) {
	far := eligibleEscort("e1")
	far.Lat = f64(40.7128) // New York, way beyond a Dallas radius
	far.Lng = f64(-74.006)

	near := eligibleEscort("e2")
	near.EffectiveRadiusMiles = f64(5)
	near.Lat = f64(33.2)
	near.Lng = f64(-96.8)

	got := Filter(openLoad(), []model.Escort{far, near}, nil, nil)
	if len(got) != 0 {
		t.Fatalf("out-of-radius escorts must be excluded, got %+v", got)
	}
}

func TestFilter_AvailabilityWindow(t *testing.T) {
	pickup := time.Now().Add(6 * time.Hour)
	ld := openLoad()
	ld.PickupEarliest = &pickup

	gone := eligibleEscort("e1")
	ws := time.Now().Add(-4 * time.Hour)
	we := time.Now().Add(time.Hour)
	gone.WindowStart, gone.WindowEnd = &ws, &we

	around := eligibleEscort("e2")
	we2 := time.Now().Add(12 * time.Hour)
	around.WindowStart, around.WindowEnd = &ws, &we2

	got := Filter(ld, []model.Escort{gone, around}, nil, nil)
	if len(got) != 1 || got[0].Escort.EscortID != "e2" {
		t.Fatalf("escort whose window ends before pickup must be excluded, got %+v", got)
	}
}

func TestFilter_RateFloor(t *testing.T) {
	ld := openLoad()
	ld.RateAmount = f64(500)

	picky := eligibleEscort("e1")
	picky.MinRatePreference = f64(1000)

	got := Filter(ld, []model.Escort{picky}, nil, nil)
	if len(got) != 0 {
		t.Fatalf("rate below escort minimum must exclude regardless of score")
	}
}
