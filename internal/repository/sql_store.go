package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rpattn/socialql/internal/domain"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// Queryer is the subset of *sql.DB the SQL store needs.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SQLStore reads entities from the Postgres schema created by the migrations.
type SQLStore struct {
	db   Queryer
	psql sq.StatementBuilderType
}

// NewSQLStore creates a store over db
func NewSQLStore(db Queryer) *SQLStore {
	return &SQLStore{
		db:   db,
		psql: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Ping checks the database connection when the underlying handle supports it
func (s *SQLStore) Ping(ctx context.Context) error {
	if p, ok := s.db.(interface{ PingContext(context.Context) error }); ok {
		return p.PingContext(ctx)
	}
	return nil
}

// FindByID returns the row of kind with the given primary key
func (s *SQLStore) FindByID(ctx context.Context, kind domain.Kind, id string) (domain.Entity, error) {
	if kind == domain.KindSubscription {
		return nil, fmt.Errorf("%s has no primary key", kind)
	}
	rows, err := s.FindMany(ctx, kind, FindOptions{Filter: &Filter{Field: FilterID, In: []string{id}}})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return rows[0], nil
}

// FindMany returns every row of kind matching opts
func (s *SQLStore) FindMany(ctx context.Context, kind domain.Kind, opts FindOptions) ([]domain.Entity, error) {
	switch kind {
	case domain.KindMemberType:
		return s.findMemberTypes(ctx, opts)
	case domain.KindUser:
		return s.findUsers(ctx, opts)
	case domain.KindPost:
		return s.findPosts(ctx, opts)
	case domain.KindProfile:
		return s.findProfiles(ctx, opts)
	case domain.KindSubscription:
		return s.findSubscriptions(ctx, opts)
	}
	return nil, fmt.Errorf("unknown entity kind %q", kind)
}

func (s *SQLStore) findMemberTypes(ctx context.Context, opts FindOptions) ([]domain.Entity, error) {
	q := s.psql.Select("id", "discount", "posts_limit_per_month").From("member_types").OrderBy("id")
	q, err := applyFilter(q, domain.KindMemberType, opts.Filter, map[FilterField]string{FilterID: "id"})
	if err != nil {
		return nil, err
	}
	return s.collect(ctx, q, func(rows *sql.Rows) (domain.Entity, error) {
		var (
			mt domain.MemberType
			id string
		)
		if err := rows.Scan(&id, &mt.Discount, &mt.PostsLimitPerMonth); err != nil {
			return nil, err
		}
		mt.ID = domain.MemberTypeID(id)
		return &mt, nil
	})
}

func (s *SQLStore) findUsers(ctx context.Context, opts FindOptions) ([]domain.Entity, error) {
	cols := []string{"u.id", "u.name", "u.balance"}
	if opts.Include.UserSubscribedTo {
		cols = append(cols, "(SELECT string_agg(s.author_id::text, ',' ORDER BY s.author_id) "+
			"FROM subscribers_on_authors s WHERE s.subscriber_id = u.id) AS subscribed_to")
	}
	if opts.Include.SubscribedToUser {
		cols = append(cols, "(SELECT string_agg(s.subscriber_id::text, ',' ORDER BY s.subscriber_id) "+
			"FROM subscribers_on_authors s WHERE s.author_id = u.id) AS subscribers")
	}
	q := s.psql.Select(cols...).From("users u").OrderBy("u.id")

	if f := opts.Filter; f != nil {
		switch f.Field {
		case FilterID:
			q = q.Where(sq.Eq{"u.id": f.In})
		case FilterSubscribedBy, FilterSubscriberOf:
			pick, match := "s.author_id", "s.subscriber_id"
			if f.Field == FilterSubscriberOf {
				pick, match = "s.subscriber_id", "s.author_id"
			}
			sub, args, err := sq.Select(pick).From("subscribers_on_authors s").Where(sq.Eq{match: f.In}).ToSql()
			if err != nil {
				return nil, fmt.Errorf("failed to build subscription filter: %w", err)
			}
			q = q.Where("u.id IN ("+sub+")", args...)
		default:
			return nil, unsupportedFilter(domain.KindUser, f)
		}
	}

	return s.collect(ctx, q, func(rows *sql.Rows) (domain.Entity, error) {
		var (
			u           domain.User
			subscribed  sql.NullString
			subscribers sql.NullString
		)
		dest := []any{&u.ID, &u.Name, &u.Balance}
		if opts.Include.UserSubscribedTo {
			dest = append(dest, &subscribed)
		}
		if opts.Include.SubscribedToUser {
			dest = append(dest, &subscribers)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		if opts.Include.UserSubscribedTo {
			authors, err := parseIDList(subscribed)
			if err != nil {
				return nil, err
			}
			u.UserSubscribedTo = make([]domain.SubscriptionEdge, len(authors))
			for i, author := range authors {
				u.UserSubscribedTo[i] = domain.SubscriptionEdge{SubscriberID: u.ID, AuthorID: author}
			}
		}
		if opts.Include.SubscribedToUser {
			followers, err := parseIDList(subscribers)
			if err != nil {
				return nil, err
			}
			u.SubscribedToUser = make([]domain.SubscriptionEdge, len(followers))
			for i, follower := range followers {
				u.SubscribedToUser[i] = domain.SubscriptionEdge{SubscriberID: follower, AuthorID: u.ID}
			}
		}
		return &u, nil
	})
}

func (s *SQLStore) findPosts(ctx context.Context, opts FindOptions) ([]domain.Entity, error) {
	q := s.psql.Select("id", "title", "content", "author_id").From("posts").OrderBy("id")
	q, err := applyFilter(q, domain.KindPost, opts.Filter, map[FilterField]string{
		FilterID:       "id",
		FilterAuthorID: "author_id",
	})
	if err != nil {
		return nil, err
	}
	return s.collect(ctx, q, func(rows *sql.Rows) (domain.Entity, error) {
		var p domain.Post
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.AuthorID); err != nil {
			return nil, err
		}
		return &p, nil
	})
}

func (s *SQLStore) findProfiles(ctx context.Context, opts FindOptions) ([]domain.Entity, error) {
	q := s.psql.Select("id", "is_male", "year_of_birth", "member_type_id", "user_id").From("profiles").OrderBy("id")
	q, err := applyFilter(q, domain.KindProfile, opts.Filter, map[FilterField]string{
		FilterID:     "id",
		FilterUserID: "user_id",
	})
	if err != nil {
		return nil, err
	}
	return s.collect(ctx, q, func(rows *sql.Rows) (domain.Entity, error) {
		var (
			p          domain.Profile
			memberType string
		)
		if err := rows.Scan(&p.ID, &p.IsMale, &p.YearOfBirth, &memberType, &p.UserID); err != nil {
			return nil, err
		}
		p.MemberTypeID = domain.MemberTypeID(memberType)
		return &p, nil
	})
}

func (s *SQLStore) findSubscriptions(ctx context.Context, opts FindOptions) ([]domain.Entity, error) {
	q := s.psql.Select("subscriber_id", "author_id").From("subscribers_on_authors").OrderBy("subscriber_id", "author_id")
	q, err := applyFilter(q, domain.KindSubscription, opts.Filter, map[FilterField]string{
		FilterSubscriberID: "subscriber_id",
		FilterAuthorID:     "author_id",
	})
	if err != nil {
		return nil, err
	}
	return s.collect(ctx, q, func(rows *sql.Rows) (domain.Entity, error) {
		var e domain.SubscriptionEdge
		if err := rows.Scan(&e.SubscriberID, &e.AuthorID); err != nil {
			return nil, err
		}
		return &e, nil
	})
}

func applyFilter(q sq.SelectBuilder, kind domain.Kind, f *Filter, columns map[FilterField]string) (sq.SelectBuilder, error) {
	if f == nil {
		return q, nil
	}
	column, ok := columns[f.Field]
	if !ok {
		return q, unsupportedFilter(kind, f)
	}
	return q.Where(sq.Eq{column: f.In}), nil
}

func (s *SQLStore) collect(ctx context.Context, q sq.SelectBuilder, scan func(*sql.Rows) (domain.Entity, error)) ([]domain.Entity, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run query: %w", err)
	}
	defer rows.Close()

	var out []domain.Entity
	for rows.Next() {
		row, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return out, nil
}

func parseIDList(raw sql.NullString) ([]uuid.UUID, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	parts := strings.Split(raw.String, ",")
	ids := make([]uuid.UUID, len(parts))
	for i, part := range parts {
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, fmt.Errorf("invalid subscription id %q: %w", part, err)
		}
		ids[i] = id
	}
	return ids, nil
}
