package prescription

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPrescription() *Prescription {
	now := time.Now().UTC()
	return &Prescription{
		ID:            uuid.New(),
		RxNumber:      "RX-20260828-000123",
		PatientID:     uuid.New(),
		DoctorID:      uuid.New(),
		AppointmentID: uuid.New(),
		TotalPrice:    13000,
		Status:        StatusIssued,
		IssuedAt:      now,
		ValidUntil:    now.AddDate(0, 0, 3),
		Items: []Item{
			{ID: uuid.New(), MedicationID: uuid.New(), Quantity: 2, UnitPrice: 5000},
		},
	}
}

func TestPgInsertRejectsUnreadyAppointment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)
	p := testPrescription()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM appointments").
		WithArgs(p.AppointmentID).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("requested"))
	mock.ExpectRollback()

	err = repo.Insert(context.Background(), p)
	assert.ErrorIs(t, err, ErrAppointmentUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgInsertRejectsMissingAppointment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)
	p := testPrescription()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM appointments").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err = repo.Insert(context.Background(), p)
	assert.ErrorIs(t, err, ErrAppointmentUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgInsertRejectsActivePrescription(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)
	p := testPrescription()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM appointments").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("confirmed"))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(p.AppointmentID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err = repo.Insert(context.Background(), p)
	assert.ErrorIs(t, err, ErrDuplicatePrescription)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgInsertWritesPrescriptionAndItems(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)
	p := testPrescription()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM appointments").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("completed"))
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO prescriptions").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO prescription_items").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err = repo.Insert(context.Background(), p)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRouteZeroRowsMeansLostRaceOrDeadline(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)

	mock.ExpectQuery("UPDATE prescriptions").
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.Route(context.Background(), uuid.New(), uuid.New(), time.Now())
	assert.ErrorIs(t, err, ErrPrescriptionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
