// Package mongo stores loans, payments and users in MongoDB collections.
package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/repository"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

const (
	LoansCollection    = "loans"
	PaymentsCollection = "payments"
	UsersCollection    = "users"
)

// Connect opens a client and pings the primary.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return client, nil
}

// EnsureIndexes creates the unique and lookup indexes the repositories rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		LoansCollection: {
			{Keys: bson.D{{Key: "loan_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "owner", Value: 1}}},
		},
		PaymentsCollection: {
			{Keys: bson.D{{Key: "loan_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		UsersCollection: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return err
		}
	}
	return nil
}

type loanRepository struct {
	coll *mongo.Collection
}

func NewLoanRepository(db *mongo.Database) repository.LoanRepository {
	return &loanRepository{coll: db.Collection(LoansCollection)}
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	if _, err := r.coll.InsertOne(ctx, toLoanDocument(loan)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return customError.WrapLoanAlreadyExists(loan.LoanID)
		}
		return customError.WrapDatabaseError(err)
	}
	return nil
}

func (r *loanRepository) GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error) {
	var doc loanDocument
	if err := r.coll.FindOne(ctx, bson.M{"loan_id": loanID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, customError.WrapLoanNotFound(loanID)
		}
		return nil, customError.WrapDatabaseError(err)
	}

	loan, err := doc.toDomain()
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return loan, nil
}

func (r *loanRepository) List(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, error) {
	query := bson.M{}
	if filter.Owner != "" {
		query["owner"] = filter.Owner
	}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "loan_id", Value: 1}})
	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	var docs []loanDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	loans := make([]*domain.Loan, 0, len(docs))
	for _, doc := range docs {
		loan, err := doc.toDomain()
		if err != nil {
			return nil, customError.WrapDatabaseError(err)
		}
		loans = append(loans, loan)
	}
	return loans, nil
}

func (r *loanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	doc := toLoanDocument(loan)
	update := bson.M{"$set": bson.M{
		"borrower_name":        doc.BorrowerName,
		"principal":            doc.Principal,
		"annual_interest_rate": doc.AnnualInterestRate,
		"duration_months":      doc.DurationMonths,
		"status":               doc.Status,
		"admin_notes":          doc.AdminNotes,
		"reviewed_by":          doc.ReviewedBy,
		"updated_at":           doc.UpdatedAt,
		"reviewed_at":          doc.ReviewedAt,
		"approved_at":          doc.ApprovedAt,
		"accepted_at":          doc.AcceptedAt,
		"rejected_at":          doc.RejectedAt,
	}}

	result, err := r.coll.UpdateOne(ctx, bson.M{"loan_id": loan.LoanID}, update)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	if result.MatchedCount == 0 {
		return customError.WrapLoanNotFound(loan.LoanID)
	}
	return nil
}

func (r *loanRepository) Touch(ctx context.Context, loanID string, at time.Time) error {
	result, err := r.coll.UpdateOne(ctx, bson.M{"loan_id": loanID}, bson.M{"$set": bson.M{"updated_at": at}})
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	if result.MatchedCount == 0 {
		return customError.WrapLoanNotFound(loanID)
	}
	return nil
}

func (r *loanRepository) Delete(ctx context.Context, loanID string) error {
	result, err := r.coll.DeleteOne(ctx, bson.M{"loan_id": loanID})
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	if result.DeletedCount == 0 {
		return customError.WrapLoanNotFound(loanID)
	}
	return nil
}

type paymentRepository struct {
	coll *mongo.Collection
}

func NewPaymentRepository(db *mongo.Database) repository.PaymentRepository {
	return &paymentRepository{coll: db.Collection(PaymentsCollection)}
}

func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	if _, err := r.coll.InsertOne(ctx, toPaymentDocument(payment)); err != nil {
		return customError.WrapDatabaseError(err)
	}
	return nil
}

func (r *paymentRepository) find(ctx context.Context, filter bson.M) ([]*domain.Payment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	var docs []paymentDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	payments := make([]*domain.Payment, 0, len(docs))
	for _, doc := range docs {
		p, err := doc.toDomain()
		if err != nil {
			return nil, customError.WrapDatabaseError(err)
		}
		payments = append(payments, p)
	}
	return payments, nil
}

func (r *paymentRepository) GetByLoanID(ctx context.Context, loanID string) ([]*domain.Payment, error) {
	return r.find(ctx, bson.M{"loan_id": loanID})
}

func (r *paymentRepository) ListByLoanIDs(ctx context.Context, loanIDs []string) (map[string][]*domain.Payment, error) {
	byLoan := make(map[string][]*domain.Payment, len(loanIDs))
	if len(loanIDs) == 0 {
		return byLoan, nil
	}

	payments, err := r.find(ctx, bson.M{"loan_id": bson.M{"$in": loanIDs}})
	if err != nil {
		return nil, err
	}
	for _, p := range payments {
		byLoan[p.LoanID] = append(byLoan[p.LoanID], p)
	}
	return byLoan, nil
}

func (r *paymentRepository) GetTotalPaid(ctx context.Context, loanID string) (decimal.Decimal, error) {
	payments, err := r.GetByLoanID(ctx, loanID)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total, nil
}

func (r *paymentRepository) Delete(ctx context.Context, loanID string, id uuid.UUID) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": id.String(), "loan_id": loanID}); err != nil {
		return customError.WrapDatabaseError(err)
	}
	return nil
}

func (r *paymentRepository) DeleteByLoanID(ctx context.Context, loanID string) error {
	if _, err := r.coll.DeleteMany(ctx, bson.M{"loan_id": loanID}); err != nil {
		return customError.WrapDatabaseError(err)
	}
	return nil
}

type userRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) repository.UserRepository {
	return &userRepository{coll: db.Collection(UsersCollection)}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if _, err := r.coll.InsertOne(ctx, toUserDocument(user)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return customError.WrapUserAlreadyExists(user.Username)
		}
		return customError.WrapDatabaseError(err)
	}
	return nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, bson.M{"username": username}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, customError.WrapUserNotFound(username)
		}
		return nil, customError.WrapDatabaseError(err)
	}

	user, err := doc.toDomain()
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return user, nil
}

func (r *userRepository) List(ctx context.Context) ([]*domain.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "username", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	users := make([]*domain.User, 0, len(docs))
	for _, doc := range docs {
		u, err := doc.toDomain()
		if err != nil {
			return nil, customError.WrapDatabaseError(err)
		}
		users = append(users, u)
	}
	return users, nil
}

func (r *userRepository) Delete(ctx context.Context, username string) error {
	result, err := r.coll.DeleteOne(ctx, bson.M{"username": username})
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	if result.DeletedCount == 0 {
		return customError.WrapUserNotFound(username)
	}
	return nil
}
