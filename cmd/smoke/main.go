package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/radiopv/assistantpv-sub000/internal/sponsorship"
	"github.com/radiopv/assistantpv-sub000/internal/sponsorship/remote"
)

// Drives one full sponsorship lifecycle against a running sponsor-api:
// submit, approve, pause, resume, transfer, terminate, and finally the
// audit trail read-back.
func main() {
	base := os.Getenv("SPONSOR_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}

	client, err := remote.New(base)
	if err != nil {
		log.Fatalf("client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := client.Authenticate(ctx, "smoke-admin", "admin"); err != nil {
		log.Fatalf("authenticate at %s: %v", base, err)
	}

	childID := fmt.Sprintf("child-smoke-%d", rand.Int63())
	req, err := client.SubmitRequest(ctx, sponsorship.Request{
		ChildID:        childID,
		RequesterName:  "Smoke Tester",
		RequesterEmail: "smoke@example.org",
		TermsAccepted:  true,
	})
	if err != nil {
		log.Fatalf("submit request: %v", err)
	}

	sp, err := client.ApproveRequest(ctx, req.ID)
	if err != nil {
		log.Fatalf("approve request: %v", err)
	}
	if sp.Status != sponsorship.StatusActive {
		log.Fatalf("approved sponsorship is %s, want active", sp.Status)
	}

	active, err := client.ActiveByChild(ctx, childID)
	if err != nil {
		log.Fatalf("active by child: %v", err)
	}
	if active.ID != sp.ID {
		log.Fatalf("active lookup returned %s, want %s", active.ID, sp.ID)
	}

	if err := client.Pause(ctx, sp.ID); err != nil {
		log.Fatalf("pause: %v", err)
	}
	if err := client.Resume(ctx, sp.ID); err != nil {
		log.Fatalf("resume: %v", err)
	}

	newSponsor := fmt.Sprintf("sponsor-smoke-%d", rand.Int63())
	transfer, err := client.Transfer(ctx, childID, newSponsor)
	if err != nil {
		log.Fatalf("transfer: %v", err)
	}
	if transfer.Ended.ID != sp.ID {
		log.Fatalf("transfer ended %s, want %s", transfer.Ended.ID, sp.ID)
	}
	if transfer.Started.SponsorID != newSponsor || transfer.Started.Status != sponsorship.StatusActive {
		log.Fatalf("transfer started an unexpected sponsorship: %+v", transfer.Started)
	}

	if err := client.Terminate(ctx, transfer.Started.ID, time.Now().UTC(), "smoke", "lifecycle check"); err != nil {
		log.Fatalf("terminate: %v", err)
	}

	trail, err := client.AuditTrail(ctx, transfer.Started.ID)
	if err != nil {
		log.Fatalf("audit trail: %v", err)
	}
	if len(trail) < 2 {
		log.Fatalf("audit trail has %d entries, want at least transfer and termination", len(trail))
	}

	fmt.Printf("✅ sponsor-api smoke test passed: child=%s sponsorships=%s,%s\n",
		childID, sp.ID, transfer.Started.ID)
}
