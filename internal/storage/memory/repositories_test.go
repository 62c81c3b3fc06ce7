package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/petshop/internal/domain"
	"github.com/vladislavdragonenkov/petshop/internal/storage/memory"
)

func TestPetRepository_Paging(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewPetRepository(domain.BasePets())

	page1, err := repo.ListPets(ctx, 1, 3)
	if err != nil {
		t.Fatalf("ListPets failed: %v", err)
	}
	if len(page1) != 3 || page1[0].ID != "1" || page1[2].ID != "3" {
		t.Fatalf("unexpected first page: %+v", page1)
	}

	page2, err := repo.ListPets(ctx, 2, 3)
	if err != nil {
		t.Fatalf("ListPets failed: %v", err)
	}
	if len(page2) != 1 || page2[0].ID != "4" {
		t.Fatalf("unexpected second page: %+v", page2)
	}

	page3, err := repo.ListPets(ctx, 3, 3)
	if err != nil {
		t.Fatalf("ListPets failed: %v", err)
	}
	if len(page3) != 0 {
		t.Fatalf("expected empty page past the end, got %d", len(page3))
	}
}

func TestPetRepository_MarkAdopted(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewPetRepository(domain.BasePets())

	if err := repo.MarkAdopted(ctx, []string{"2", "unknown"}); err != nil {
		t.Fatalf("MarkAdopted failed: %v", err)
	}

	pet, found, err := repo.GetPet(ctx, "2")
	if err != nil || !found {
		t.Fatalf("GetPet failed: found=%v err=%v", found, err)
	}
	if pet.AdoptionStatus != domain.AdoptionStatusAdopted {
		t.Fatalf("expected adopted, got %s", pet.AdoptionStatus)
	}

	other, _, _ := repo.GetPet(ctx, "1")
	if other.AdoptionStatus != domain.AdoptionStatusAvailable {
		t.Fatalf("untouched pet must stay available, got %s", other.AdoptionStatus)
	}

	if _, found, err := repo.GetPet(ctx, "unknown"); err != nil || found {
		t.Fatalf("unknown pet: found=%v err=%v", found, err)
	}
}

func TestPaymentMethodRepository_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewPaymentMethodRepository()

	if _, found, err := repo.GetByCustomer(ctx, memory.DemoCustomerID); err != nil || found {
		t.Fatalf("expected missing record, found=%v err=%v", found, err)
	}

	if err := memory.SeedDemoData(ctx, repo); err != nil {
		t.Fatalf("SeedDemoData failed: %v", err)
	}
	method, found, err := repo.GetByCustomer(ctx, memory.DemoCustomerID)
	if err != nil || !found {
		t.Fatalf("GetByCustomer failed: found=%v err=%v", found, err)
	}
	if method.MaskedCardNumber() != "****4242" {
		t.Fatalf("unexpected masked card %s", method.MaskedCardNumber())
	}

	replacement := memory.DemoPaymentMethod()
	replacement.ID = ""
	replacement.CardNumber = "5555555555554444"
	if err := repo.Save(ctx, replacement); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	method, _, _ = repo.GetByCustomer(ctx, memory.DemoCustomerID)
	if method.ID == "" || method.CardNumber != "5555555555554444" {
		t.Fatalf("expected replaced record with generated id, got %+v", method)
	}

	if err := repo.Save(ctx, domain.PaymentMethod{}); !errors.Is(err, domain.ErrCustomerRequired) {
		t.Fatalf("expected ErrCustomerRequired, got %v", err)
	}
}

func TestOrderRepository_InsertAndList(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	total := decimal.RequireFromString("84.79")
	earlier := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Hour)

	batch1 := []domain.Order{
		{ID: "o-1", CustomerID: "c-1", PaymentID: "pm", PetID: "1", OrderDate: earlier, TotalAmount: total},
		{ID: "o-2", CustomerID: "c-1", PaymentID: "pm", PetID: "2", OrderDate: earlier, TotalAmount: total},
	}
	batch2 := []domain.Order{
		{ID: "o-3", CustomerID: "c-1", PaymentID: "pm", PetID: "3", OrderDate: later, TotalAmount: total},
		{ID: "o-4", CustomerID: "c-2", PaymentID: "pm", PetID: "4", OrderDate: later, TotalAmount: total},
	}
	if err := repo.InsertOrders(ctx, batch1); err != nil {
		t.Fatalf("InsertOrders failed: %v", err)
	}
	if err := repo.InsertOrders(ctx, batch2); err != nil {
		t.Fatalf("InsertOrders failed: %v", err)
	}

	orders, err := repo.ListByCustomer(ctx, "c-1", 0)
	if err != nil {
		t.Fatalf("ListByCustomer failed: %v", err)
	}
	got := make([]string, 0, len(orders))
	for _, o := range orders {
		got = append(got, o.ID)
	}
	want := []string{"o-3", "o-2", "o-1"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	limited, err := repo.ListByCustomer(ctx, "c-1", 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("expected one order with limit, got %d (%v)", len(limited), err)
	}
}

func TestOrderRepository_DuplicateBatchRejectedAtomically(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	order := domain.Order{ID: "o-1", CustomerID: "c-1", TotalAmount: decimal.NewFromInt(1)}

	if err := repo.InsertOrders(ctx, []domain.Order{order}); err != nil {
		t.Fatalf("InsertOrders failed: %v", err)
	}

	err := repo.InsertOrders(ctx, []domain.Order{{ID: "o-2", CustomerID: "c-1"}, order})
	if !errors.Is(err, domain.ErrOrderAlreadyExists) {
		t.Fatalf("expected ErrOrderAlreadyExists, got %v", err)
	}

	orders, _ := repo.ListByCustomer(ctx, "c-1", 0)
	if len(orders) != 1 {
		t.Fatalf("rejected batch must not be partially stored, got %d orders", len(orders))
	}
}

func TestOutboxRepository_EnqueuePullAndStats(t *testing.T) {
	repo := memory.NewOutboxRepository()

	first, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "checkout",
		AggregateID:   "checkout-1",
		EventType:     "CheckoutCommitted",
		Payload:       []byte(`{"orders":1}`),
	})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected generated id")
	}
	second, err := repo.Enqueue(domain.OutboxMessage{AggregateType: "checkout", AggregateID: "checkout-2"})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	pending, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("PullPending failed: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != first.ID || pending[1].ID != second.ID {
		t.Fatalf("expected pending in enqueue order, got %+v", pending)
	}

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.PendingCount != 2 || stats.OldestPendingAt.IsZero() {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if err := repo.MarkSent(first.ID); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}
	if err := repo.MarkFailed(second.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := repo.MarkFailed("missing"); err == nil {
		t.Fatal("expected error for missing record")
	}

	stats, _ = repo.Stats()
	if stats.PendingCount != 0 || !stats.OldestPendingAt.IsZero() {
		t.Fatalf("expected empty backlog, got %+v", stats)
	}
	if len(repo.AllPending()) != 0 {
		t.Fatal("expected no pending messages")
	}
}

func TestTimelineRepository_AppendOrdersByTime(t *testing.T) {
	repo := memory.NewTimelineRepository()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	events := []domain.TimelineEvent{
		{CheckoutID: "c-1", Type: "CheckoutCommitted", Occurred: base.Add(time.Minute)},
		{CheckoutID: "c-1", Type: "Ready", Occurred: base},
		{CheckoutID: "c-2", Type: "LoadError", Occurred: base},
	}
	for _, e := range events {
		if err := repo.Append(e); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	got, err := repo.List("c-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 2 || got[0].Type != "Ready" || got[1].Type != "CheckoutCommitted" {
		t.Fatalf("unexpected timeline: %+v", got)
	}

	if err := repo.Append(domain.TimelineEvent{Type: "orphan"}); !errors.Is(err, domain.ErrCheckoutIDRequired) {
		t.Fatalf("expected ErrCheckoutIDRequired, got %v", err)
	}
}
