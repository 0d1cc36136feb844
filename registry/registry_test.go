package registry_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/alwitt/modelregistry/db"
	"github.com/alwitt/modelregistry/models"
	"github.com/alwitt/modelregistry/registry"
	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/logger"
)

// testContentRef a well formed 46 byte fixed-length content reference
const testContentRef = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"

// refuseAllRatingPolicy a RatingPolicy refusing every rating
type refuseAllRatingPolicy struct{}

func (refuseAllRatingPolicy) AllowRating(
	_ context.Context, rater string, _ models.Model, _ db.Database,
) error {
	return fmt.Errorf("'%s' has not consumed this model", rater)
}

// newTestRegistry prepare a registry against a fresh sqlite DB
func newTestRegistry(
	t *testing.T, params registry.Params, policy registry.RatingPolicy,
) (db.Client, registry.ModelRegistry, *registry.FixedSequenceSource, *[]models.RegistryEvent) {
	assert := assert.New(t)
	utCtx := context.Background()

	testDB := fmt.Sprintf("/tmp/modelregistry_ut_%s.db", ulid.Make().String())
	log.WithField("db", testDB).Debug("Test database")

	persistence, err := db.NewConnection(db.GetSqliteDialector(testDB), logger.Error)
	assert.Nil(err)
	assert.Nil(persistence.RunSQLInTransaction(utCtx, db.DefineTables))

	sequence := &registry.FixedSequenceSource{Sequence: 1}

	emitted := &[]models.RegistryEvent{}
	uut, err := registry.NewModelRegistry(
		utCtx, persistence, params, sequence, policy,
		func(event models.RegistryEvent) {
			*emitted = append(*emitted, event)
		},
	)
	assert.Nil(err)

	return persistence, uut, sequence, emitted
}

// fundAccount credit an account through the persistence layer
func fundAccount(t *testing.T, persistence db.Client, account string, amount int64) {
	assert := assert.New(t)
	err := persistence.UseDatabaseInTransaction(
		context.Background(), func(ctx context.Context, dbClient db.Database) error {
			_, err := dbClient.CreditAccount(ctx, account, decimal.NewFromInt(amount))
			return err
		},
	)
	assert.Nil(err)
}

// balanceOf read an account balance through the persistence layer
func balanceOf(t *testing.T, persistence db.Client, account string) decimal.Decimal {
	assert := assert.New(t)
	var balance decimal.Decimal
	err := persistence.UseDatabaseInTransaction(
		context.Background(), func(ctx context.Context, dbClient db.Database) error {
			read, err := dbClient.GetLedgerBalance(ctx, account)
			if err != nil {
				return err
			}
			balance = read
			return nil
		},
	)
	assert.Nil(err)
	return balance
}

// TestRegisterModel verifies the registration command end to end: admission
// control, dense ID issue, record content, fee debit, and event emission.
func TestRegisterModel(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()
	persistence, uut, sequence, emitted := newTestRegistry(t, registry.DefaultParams(), nil)

	caller := uuid.NewString()
	// Enough headroom to stay above the minimum stake across several fee debits
	fundAccount(t, persistence, caller, 5000)

	// -------------------------------------------------------------------------
	// 1 – First successful registration issues ID 0
	sequence.Sequence = 42
	model0, err := uut.RegisterModel(utCtx, caller, registry.RegisterModelRequest{
		ContentRef:  testContentRef,
		Name:        "sentiment-classifier",
		Description: "basic sentiment classifier",
		Category:    models.ModelCategoryClassification,
		Price:       decimal.NewFromInt(25),
	}, nil)
	assert.Nil(err)
	assert.Equal(uint64(0), model0.ID)
	assert.Equal(caller, model0.Owner)
	assert.Equal(models.ModelStatusActive, model0.Status)
	assert.Equal(uint64(42), model0.CreatedAtSeq)
	assert.Equal(uint64(0), model0.TotalUsage)
	assert.Equal(uint64(0), model0.RatingSum)
	assert.Equal(uint32(0), model0.RatingCount)

	// The registration fee was debited
	assert.True(decimal.NewFromInt(4900).Equal(balanceOf(t, persistence, caller)))

	// A MODEL_REGISTERED event was delivered
	assert.Len(*emitted, 1)
	assert.Equal(models.RegistryEventTypeModelRegistered, (*emitted)[0].EventType)

	// 2 – Second registration issues ID 1
	model1, err := uut.RegisterModel(utCtx, caller, registry.RegisterModelRequest{
		ContentRef: "b" + strings.Repeat("a", 50),
		Name:       "text-generator",
		Category:   models.ModelCategoryGenerative,
		Price:      decimal.NewFromInt(50),
	}, nil)
	assert.Nil(err)
	assert.Equal(uint64(1), model1.ID)

	// -------------------------------------------------------------------------
	// 3 – Malformed content reference is rejected, with no fee debit and no
	// ID consumed
	balanceBefore := balanceOf(t, persistence, caller)
	_, err = uut.RegisterModel(utCtx, caller, registry.RegisterModelRequest{
		ContentRef: "invalid",
		Name:       "broken",
		Category:   models.ModelCategoryClassification,
		Price:      decimal.NewFromInt(1),
	}, nil)
	assert.ErrorIs(err, models.ErrInvalidContentReference)
	assert.True(balanceBefore.Equal(balanceOf(t, persistence, caller)))

	// 4 – Oversized fields are rejected
	_, err = uut.RegisterModel(utCtx, caller, registry.RegisterModelRequest{
		ContentRef: "b" + strings.Repeat("a", 200),
		Name:       "oversized",
		Category:   models.ModelCategoryClassification,
		Price:      decimal.NewFromInt(1),
	}, nil)
	assert.ErrorIs(err, models.ErrFieldTooLong)

	_, err = uut.RegisterModel(utCtx, caller, registry.RegisterModelRequest{
		ContentRef: testContentRef,
		Name:       strings.Repeat("n", models.MaxNameLength+1),
		Category:   models.ModelCategoryClassification,
		Price:      decimal.NewFromInt(1),
	}, nil)
	assert.ErrorIs(err, models.ErrFieldTooLong)

	_, err = uut.RegisterModel(utCtx, caller, registry.RegisterModelRequest{
		ContentRef:  testContentRef,
		Name:        "ok",
		Description: strings.Repeat("d", models.MaxDescriptionLength+1),
		Category:    models.ModelCategoryClassification,
		Price:       decimal.NewFromInt(1),
	}, nil)
	assert.ErrorIs(err, models.ErrFieldTooLong)

	// 5 – The failed attempts consumed no ID
	model2, err := uut.RegisterModel(utCtx, caller, registry.RegisterModelRequest{
		ContentRef: testContentRef,
		Name:       "price-predictor",
		Category:   models.ModelCategoryRegression,
		Price:      decimal.NewFromInt(10),
	}, nil)
	assert.Nil(err)
	assert.Equal(uint64(2), model2.ID)

	// -------------------------------------------------------------------------
	// 6 – An unfunded account fails the stake check
	pauper := uuid.NewString()
	_, err = uut.RegisterModel(utCtx, pauper, registry.RegisterModelRequest{
		ContentRef: testContentRef,
		Name:       "no-stake",
		Category:   models.ModelCategoryClassification,
		Price:      decimal.NewFromInt(1),
	}, nil)
	assert.ErrorIs(err, models.ErrInsufficientStake)
}

// TestRegisterModelFeeAdmission verifies the fee debit failure path: stake
// check passes but the account cannot sustain the registration fee.
func TestRegisterModelFeeAdmission(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	params := registry.DefaultParams()
	params.MinimumStake = decimal.NewFromInt(50)
	params.RegistrationFee = decimal.NewFromInt(100)
	persistence, uut, _, _ := newTestRegistry(t, params, nil)

	caller := uuid.NewString()
	fundAccount(t, persistence, caller, 60)

	_, err := uut.RegisterModel(utCtx, caller, registry.RegisterModelRequest{
		ContentRef: testContentRef,
		Name:       "underfunded",
		Category:   models.ModelCategoryClassification,
		Price:      decimal.NewFromInt(1),
	}, nil)
	assert.ErrorIs(err, models.ErrInsufficientBalance)

	// The failed command left the balance untouched
	assert.True(decimal.NewFromInt(60).Equal(balanceOf(t, persistence, caller)))

	// And consumed no ID
	fundAccount(t, persistence, caller, 1000)
	model, err := uut.RegisterModel(utCtx, caller, registry.RegisterModelRequest{
		ContentRef: testContentRef,
		Name:       "funded-now",
		Category:   models.ModelCategoryClassification,
		Price:      decimal.NewFromInt(1),
	}, nil)
	assert.Nil(err)
	assert.Equal(uint64(0), model.ID)
}

// TestRegisterModelStakeRechecked verifies the stake check applies to every
// registration: once fee debits drop the balance below the minimum stake,
// further registrations are refused.
func TestRegisterModelStakeRechecked(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()
	persistence, uut, _, _ := newTestRegistry(t, registry.DefaultParams(), nil)

	// Funded at exactly the minimum stake
	caller := uuid.NewString()
	fundAccount(t, persistence, caller, 1000)

	model, err := uut.RegisterModel(utCtx, caller, registry.RegisterModelRequest{
		ContentRef: testContentRef,
		Name:       "first",
		Category:   models.ModelCategoryClassification,
		Price:      decimal.NewFromInt(1),
	}, nil)
	assert.Nil(err)
	assert.Equal(uint64(0), model.ID)

	// The fee debit left 900 < 1000, so the next attempt fails admission
	_, err = uut.RegisterModel(utCtx, caller, registry.RegisterModelRequest{
		ContentRef: testContentRef,
		Name:       "second",
		Category:   models.ModelCategoryClassification,
		Price:      decimal.NewFromInt(1),
	}, nil)
	assert.ErrorIs(err, models.ErrInsufficientStake)
	assert.True(decimal.NewFromInt(900).Equal(balanceOf(t, persistence, caller)))

	// Topping back up restores admission, and the failed attempt consumed no ID
	fundAccount(t, persistence, caller, 1000)
	model, err = uut.RegisterModel(utCtx, caller, registry.RegisterModelRequest{
		ContentRef: testContentRef,
		Name:       "third",
		Category:   models.ModelCategoryClassification,
		Price:      decimal.NewFromInt(1),
	}, nil)
	assert.Nil(err)
	assert.Equal(uint64(1), model.ID)
}

// TestUpdateModelMetadata verifies ownership gating, partial updates, and
// whole-command abort on a bad field.
func TestUpdateModelMetadata(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()
	persistence, uut, _, emitted := newTestRegistry(t, registry.DefaultParams(), nil)

	owner := uuid.NewString()
	fundAccount(t, persistence, owner, 1000)

	model, err := uut.RegisterModel(utCtx, owner, registry.RegisterModelRequest{
		ContentRef:  testContentRef,
		Name:        "sentiment-classifier",
		Description: "basic sentiment classifier",
		Category:    models.ModelCategoryClassification,
		Price:       decimal.NewFromInt(25),
	}, nil)
	assert.Nil(err)

	// -------------------------------------------------------------------------
	// 1 – Price-only update round trips, everything else unchanged
	newPrice := decimal.NewFromInt(40)
	assert.Nil(uut.UpdateModelMetadata(utCtx, owner, model.ID, registry.ModelMetadataUpdate{
		NewPrice: &newPrice,
	}, nil))

	read, err := uut.GetModel(utCtx, model.ID, nil)
	assert.Nil(err)
	assert.True(newPrice.Equal(read.Price))
	assert.Equal("basic sentiment classifier", read.Description)
	assert.Equal(models.ModelStatusActive, read.Status)
	assert.Equal(model.ContentRef, read.ContentRef)
	assert.Equal(model.Owner, read.Owner)

	// 2 – Status and description update together
	newStatus := models.ModelStatusPaused
	newDescription := "tuned sentiment classifier"
	assert.Nil(uut.UpdateModelMetadata(utCtx, owner, model.ID, registry.ModelMetadataUpdate{
		NewDescription: &newDescription,
		NewStatus:      &newStatus,
	}, nil))

	read, err = uut.GetModel(utCtx, model.ID, nil)
	assert.Nil(err)
	assert.Equal(newDescription, read.Description)
	assert.Equal(models.ModelStatusPaused, read.Status)

	// MODEL_UPDATED events were delivered for both updates
	updatedCount := 0
	for _, event := range *emitted {
		if event.EventType == models.RegistryEventTypeModelUpdated {
			updatedCount++
		}
	}
	assert.Equal(2, updatedCount)

	// -------------------------------------------------------------------------
	// 3 – One bad field aborts the whole update: the valid price change must
	// not stick
	badDescription := strings.Repeat("d", models.MaxDescriptionLength+1)
	abortedPrice := decimal.NewFromInt(999)
	err = uut.UpdateModelMetadata(utCtx, owner, model.ID, registry.ModelMetadataUpdate{
		NewPrice:       &abortedPrice,
		NewDescription: &badDescription,
	}, nil)
	assert.ErrorIs(err, models.ErrFieldTooLong)

	read, err = uut.GetModel(utCtx, model.ID, nil)
	assert.Nil(err)
	assert.True(newPrice.Equal(read.Price))
	assert.Equal(newDescription, read.Description)

	// -------------------------------------------------------------------------
	// 4 – A non-owner cannot update
	stranger := uuid.NewString()
	err = uut.UpdateModelMetadata(utCtx, stranger, model.ID, registry.ModelMetadataUpdate{
		NewPrice: &abortedPrice,
	}, nil)
	assert.ErrorIs(err, models.ErrUnauthorized)

	// 5 – Updating an unknown model fails with the not-found kind
	err = uut.UpdateModelMetadata(utCtx, owner, 99, registry.ModelMetadataUpdate{
		NewPrice: &abortedPrice,
	}, nil)
	assert.ErrorIs(err, models.ErrModelNotFound)
}

// TestDeactivateModel verifies ownership gating and idempotent deactivation.
func TestDeactivateModel(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()
	persistence, uut, _, _ := newTestRegistry(t, registry.DefaultParams(), nil)

	owner := uuid.NewString()
	fundAccount(t, persistence, owner, 1000)

	model, err := uut.RegisterModel(utCtx, owner, registry.RegisterModelRequest{
		ContentRef: testContentRef,
		Name:       "short-lived",
		Category:   models.ModelCategoryClassification,
		Price:      decimal.NewFromInt(5),
	}, nil)
	assert.Nil(err)

	// 1 – A non-owner cannot deactivate, and the status is untouched
	stranger := uuid.NewString()
	assert.ErrorIs(
		uut.DeactivateModel(utCtx, stranger, model.ID, nil), models.ErrUnauthorized,
	)
	read, err := uut.GetModel(utCtx, model.ID, nil)
	assert.Nil(err)
	assert.Equal(models.ModelStatusActive, read.Status)

	// 2 – The owner deactivates
	assert.Nil(uut.DeactivateModel(utCtx, owner, model.ID, nil))
	read, err = uut.GetModel(utCtx, model.ID, nil)
	assert.Nil(err)
	assert.Equal(models.ModelStatusDeactivated, read.Status)

	// 3 – Deactivating again succeeds silently
	assert.Nil(uut.DeactivateModel(utCtx, owner, model.ID, nil))
	read, err = uut.GetModel(utCtx, model.ID, nil)
	assert.Nil(err)
	assert.Equal(models.ModelStatusDeactivated, read.Status)

	// 4 – Unknown model
	assert.ErrorIs(uut.DeactivateModel(utCtx, owner, 99, nil), models.ErrModelNotFound)
}

// TestRateModel verifies rating validation, aggregation, and the average
// query.
func TestRateModel(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()
	persistence, uut, _, emitted := newTestRegistry(t, registry.DefaultParams(), nil)

	owner := uuid.NewString()
	fundAccount(t, persistence, owner, 1000)

	model, err := uut.RegisterModel(utCtx, owner, registry.RegisterModelRequest{
		ContentRef: testContentRef,
		Name:       "rated-model",
		Category:   models.ModelCategoryGenerative,
		Price:      decimal.NewFromInt(5),
	}, nil)
	assert.Nil(err)

	rater := uuid.NewString()

	// -------------------------------------------------------------------------
	// 1 – Before any rating the average is undefined
	_, defined, err := uut.AverageRating(utCtx, model.ID, nil)
	assert.Nil(err)
	assert.False(defined)

	// 2 – rate 5 then 3: sum 8, count 2, average 4
	assert.Nil(uut.RateModel(utCtx, rater, model.ID, 5, nil))
	assert.Nil(uut.RateModel(utCtx, rater, model.ID, 3, nil))

	read, err := uut.GetModel(utCtx, model.ID, nil)
	assert.Nil(err)
	assert.Equal(uint64(8), read.RatingSum)
	assert.Equal(uint32(2), read.RatingCount)

	average, defined, err := uut.AverageRating(utCtx, model.ID, nil)
	assert.Nil(err)
	assert.True(defined)
	assert.Equal(uint64(4), average)

	// MODEL_RATED events were delivered
	ratedCount := 0
	for _, event := range *emitted {
		if event.EventType == models.RegistryEventTypeModelRated {
			ratedCount++
		}
	}
	assert.Equal(2, ratedCount)

	// -------------------------------------------------------------------------
	// 3 – Out-of-range ratings are rejected and the aggregate is unchanged
	assert.ErrorIs(uut.RateModel(utCtx, rater, model.ID, 0, nil), models.ErrInvalidRating)
	assert.ErrorIs(uut.RateModel(utCtx, rater, model.ID, 6, nil), models.ErrInvalidRating)

	read, err = uut.GetModel(utCtx, model.ID, nil)
	assert.Nil(err)
	assert.Equal(uint64(8), read.RatingSum)
	assert.Equal(uint32(2), read.RatingCount)

	// 4 – Rating an unknown model fails with the not-found kind
	assert.ErrorIs(uut.RateModel(utCtx, rater, 99, 5, nil), models.ErrModelNotFound)

	// 5 – The average query is total: an unknown ID reports undefined, not an
	// error
	_, defined, err = uut.AverageRating(utCtx, 99, nil)
	assert.Nil(err)
	assert.False(defined)
}

// TestRatingPolicy verifies the rating admission policy hook is consulted.
func TestRatingPolicy(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()
	persistence, uut, _, _ := newTestRegistry(t, registry.DefaultParams(), refuseAllRatingPolicy{})

	owner := uuid.NewString()
	fundAccount(t, persistence, owner, 1000)

	model, err := uut.RegisterModel(utCtx, owner, registry.RegisterModelRequest{
		ContentRef: testContentRef,
		Name:       "guarded-model",
		Category:   models.ModelCategoryClassification,
		Price:      decimal.NewFromInt(5),
	}, nil)
	assert.Nil(err)

	assert.Error(uut.RateModel(utCtx, uuid.NewString(), model.ID, 5, nil))

	read, err := uut.GetModel(utCtx, model.ID, nil)
	assert.Nil(err)
	assert.Equal(uint32(0), read.RatingCount)
}

// TestReportModelUsage verifies the inference fulfillment entry point.
func TestReportModelUsage(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()
	persistence, uut, _, _ := newTestRegistry(t, registry.DefaultParams(), nil)

	owner := uuid.NewString()
	fundAccount(t, persistence, owner, 1000)

	model, err := uut.RegisterModel(utCtx, owner, registry.RegisterModelRequest{
		ContentRef: testContentRef,
		Name:       "used-model",
		Category:   models.ModelCategoryRegression,
		Price:      decimal.NewFromInt(5),
	}, nil)
	assert.Nil(err)

	assert.Nil(uut.ReportModelUsage(utCtx, model.ID, nil))
	assert.Nil(uut.ReportModelUsage(utCtx, model.ID, nil))

	read, err := uut.GetModel(utCtx, model.ID, nil)
	assert.Nil(err)
	assert.Equal(uint64(2), read.TotalUsage)

	assert.ErrorIs(uut.ReportModelUsage(utCtx, 99, nil), models.ErrModelNotFound)
}

// TestListModelsByOwner verifies the per-owner listing surface.
func TestListModelsByOwner(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()
	persistence, uut, _, _ := newTestRegistry(t, registry.DefaultParams(), nil)

	owner1 := uuid.NewString()
	owner2 := uuid.NewString()
	fundAccount(t, persistence, owner1, 2000)
	fundAccount(t, persistence, owner2, 2000)

	for idx := 0; idx < 2; idx++ {
		_, err := uut.RegisterModel(utCtx, owner1, registry.RegisterModelRequest{
			ContentRef: testContentRef,
			Name:       uuid.NewString(),
			Category:   models.ModelCategoryClassification,
			Price:      decimal.NewFromInt(5),
		}, nil)
		assert.Nil(err)
	}
	_, err := uut.RegisterModel(utCtx, owner2, registry.RegisterModelRequest{
		ContentRef: testContentRef,
		Name:       uuid.NewString(),
		Category:   models.ModelCategoryGenerative,
		Price:      decimal.NewFromInt(5),
	}, nil)
	assert.Nil(err)

	listed, err := uut.ListModelsByOwner(utCtx, owner1, nil)
	assert.Nil(err)
	assert.Len(listed, 2)

	listed, err = uut.ListModelsByOwner(utCtx, owner2, nil)
	assert.Nil(err)
	assert.Len(listed, 1)

	// Deactivation does not remove the record or its index entry
	assert.Nil(uut.DeactivateModel(utCtx, owner2, listed[0].ID, nil))
	listed, err = uut.ListModelsByOwner(utCtx, owner2, nil)
	assert.Nil(err)
	assert.Len(listed, 1)
	assert.Equal(models.ModelStatusDeactivated, listed[0].Status)
}

// TestRegistryEventLogQuery verifies the persisted event log reflects command
// history.
func TestRegistryEventLogQuery(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()
	persistence, uut, _, _ := newTestRegistry(t, registry.DefaultParams(), nil)

	owner := uuid.NewString()
	fundAccount(t, persistence, owner, 1000)

	model, err := uut.RegisterModel(utCtx, owner, registry.RegisterModelRequest{
		ContentRef: testContentRef,
		Name:       "event-model",
		Category:   models.ModelCategoryClassification,
		Price:      decimal.NewFromInt(5),
	}, nil)
	assert.Nil(err)
	assert.Nil(uut.RateModel(utCtx, uuid.NewString(), model.ID, 4, nil))
	assert.Nil(uut.DeactivateModel(utCtx, owner, model.ID, nil))

	events, err := uut.ListEvents(utCtx, db.RegistryEventQueryFilter{}, nil)
	assert.Nil(err)
	assert.Len(events, 3)
	assert.Equal(models.RegistryEventTypeModelRegistered, events[0].EventType)
	assert.Equal(models.RegistryEventTypeModelRated, events[1].EventType)
	assert.Equal(models.RegistryEventTypeModelDeactivated, events[2].EventType)

	// A failed command must leave no event behind
	assert.ErrorIs(uut.RateModel(utCtx, uuid.NewString(), 99, 4, nil), models.ErrModelNotFound)
	events, err = uut.ListEvents(utCtx, db.RegistryEventQueryFilter{}, nil)
	assert.Nil(err)
	assert.Len(events, 3)
}
