package app

import (
	"time"

	"github.com/google/uuid"
	"github.com/suba/wallet-service/internal/domain"
	"github.com/suba/wallet-service/pkg/qrtoken"
)

const testEmissionFee = int64(50000) // 500.00 in cents

func ptrString(s string) *string { return &s }

func ptrTime(t time.Time) *time.Time { return &t }

func newTestService(repo *fakeRepository) (*Service, *fakePublisher) {
	publisher := &fakePublisher{}
	svc := NewService(repo, publisher, qrtoken.NewSigner("test-secret", 5*time.Minute), nil, 0, 0, testEmissionFee)
	return svc, publisher
}

func completeKYC() domain.KYCProfile {
	birth := time.Date(1990, time.March, 12, 0, 0, 0, 0, time.UTC)
	return domain.KYCProfile{
		NationalID: "0102030405",
		BirthDate:  &birth,
		Phone:      "+593990000000",
	}
}

func seedPassenger(repo *fakeRepository, balance int64) uuid.UUID {
	id := uuid.New()
	repo.passengers[id] = &domain.PassengerAccount{
		ID: id, FullName: "Ana Pruebas", Email: "ana@example.com",
		Balance: balance, KYC: completeKYC(),
	}
	return id
}

func seedDriver(repo *fakeRepository, balance int64) uuid.UUID {
	id := uuid.New()
	repo.drivers[id] = &domain.DriverAccount{
		ID: id, FullName: "Luis Conductor", Email: "luis@example.com",
		Balance: balance, KYC: completeKYC(),
	}
	return id
}

func seedRouteFare(repo *fakeRepository, baseFare int64) uuid.UUID {
	id := uuid.New()
	repo.fares[id] = &domain.RouteFare{RouteID: id, BaseFare: baseFare}
	return id
}

func seedActiveCard(repo *fakeRepository, passengerID uuid.UUID) string {
	cardUID := "04:" + uuid.NewString()[:8]
	repo.cards[cardUID] = &domain.NfcCard{
		ID: uuid.New(), CardUID: cardUID, PassengerID: passengerID,
		Status: domain.CardActive, IssuedAt: time.Now(), RequestID: uuid.New(),
	}
	return cardUID
}
