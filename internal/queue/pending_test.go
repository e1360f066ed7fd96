package queue

import (
	"testing"
	"time"
)

func TestPendingTableResolve(t *testing.T) {
	table := NewPendingTable()
	ch := table.Register("corr-1")

	resolved := table.Resolve(PartResult{CorrelationID: "corr-1", PartNumber: 3, ETag: "etag-3"})
	if !resolved {
		t.Fatal("Ожидался resolve зарегистрированной записи")
	}

	select {
	case result := <-ch:
		if result.ETag != "etag-3" {
			t.Errorf("Ожидался eTag etag-3, получен %s", result.ETag)
		}
		if result.PartNumber != 3 {
			t.Errorf("Ожидался номер части 3, получен %d", result.PartNumber)
		}
	case <-time.After(time.Second):
		t.Fatal("Результат не доставлен в канал ожидания")
	}

	if table.Len() != 0 {
		t.Errorf("Таблица ожидания не пуста после resolve: %d записей", table.Len())
	}
}

func TestPendingTableLateResultDiscarded(t *testing.T) {
	table := NewPendingTable()
	table.Register("corr-1")
	table.Cancel("corr-1")

	if table.Resolve(PartResult{CorrelationID: "corr-1"}) {
		t.Error("Запоздавший результат после Cancel должен отбрасываться")
	}
	if table.Resolve(PartResult{CorrelationID: "unknown"}) {
		t.Error("Результат с неизвестным корреляционным идентификатором должен отбрасываться")
	}
}

func TestPendingTableResolveDoesNotBlock(t *testing.T) {
	table := NewPendingTable()
	table.Register("corr-1")

	// Никто не читает канал: Resolve обязан завершиться за счёт буфера.
	done := make(chan struct{})
	go func() {
		table.Resolve(PartResult{CorrelationID: "corr-1", ETag: "etag"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Resolve заблокировался без читателя канала")
	}
}

func TestPendingTableCancelIdempotent(t *testing.T) {
	table := NewPendingTable()
	table.Register("corr-1")
	table.Cancel("corr-1")
	table.Cancel("corr-1")

	if table.Len() != 0 {
		t.Errorf("Таблица ожидания не пуста: %d записей", table.Len())
	}
}
