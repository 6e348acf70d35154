package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store { return &Store{db: db} }

func (s *Store) Ping(ctx context.Context) error { return s.db.Ping(ctx) }

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// Users

const userCols = `id, name, email, created_at`

func scanUser(row rowScanner) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// CreateUser stores a user; email is expected lower-cased. A taken email is ErrConflict.
func (s *Store) CreateUser(ctx context.Context, name, email, passwordHash string) (User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `insert into users(id, name, email, password_hash) values($1,$2,$3,$4)
		returning `+userCols, uuid.New(), name, email, passwordHash))
	if isUniqueViolation(err, "users_email_key") {
		return User{}, ErrConflict
	}
	return u, err
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(s.db.QueryRow(ctx, `select `+userCols+` from users where id=$1`, id))
}

func (s *Store) UserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(s.db.QueryRow(ctx, `select `+userCols+` from users where lower(email)=lower($1)`, email))
}

// userCredsByEmail returns the user together with the stored password hash.
func (s *Store) userCredsByEmail(ctx context.Context, email string) (User, string, error) {
	var u User
	var hash string
	err := s.db.QueryRow(ctx, `select `+userCols+`, password_hash from users where lower(email)=lower($1)`, email).
		Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, "", ErrNotFound
	}
	return u, hash, err
}

// Boards

const boardCols = `id, title, coalesce(slug,''), background, owner_id, created_at, updated_at`

func scanBoard(row rowScanner) (Board, error) {
	var b Board
	err := row.Scan(&b.ID, &b.Title, &b.Slug, &b.Background, &b.OwnerID, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Board{}, ErrNotFound
	}
	return b, err
}

func (s *Store) GetBoard(ctx context.Context, id uuid.UUID) (Board, error) {
	return scanBoard(s.db.QueryRow(ctx, `select `+boardCols+` from boards where id=$1`, id))
}

func (s *Store) BoardBySlug(ctx context.Context, slug string) (Board, error) {
	return scanBoard(s.db.QueryRow(ctx, `select `+boardCols+` from boards where slug=$1`, slug))
}

// dbtx is satisfied by the pool and by an open transaction; Begin on a
// transaction opens a savepoint.
type dbtx interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// slugTaken reports whether another board than exclude already uses slug.
func slugTaken(q dbtx, exclude uuid.UUID) func(context.Context, string) (bool, error) {
	return func(ctx context.Context, slug string) (bool, error) {
		var taken bool
		err := q.QueryRow(ctx, `select exists(select 1 from boards where slug=$1 and id<>$2)`, slug, exclude).Scan(&taken)
		return taken, err
	}
}

// withSlug derives a unique slug for title and runs write with it, deriving
// again if a concurrent writer claimed the same slug first. Each attempt runs in
// its own transaction, or savepoint when q is a transaction, so a failed attempt
// leaves q usable.
func withSlug(ctx context.Context, q dbtx, boardID uuid.UUID, title string, write func(tx pgx.Tx, slug string) error) error {
	const attempts = 5
	var err error
	for i := 0; i < attempts; i++ {
		var slug string
		slug, err = uniqueSlug(ctx, title, slugTaken(q, boardID))
		if err != nil {
			return err
		}
		err = pgx.BeginFunc(ctx, q, func(tx pgx.Tx) error { return write(tx, slug) })
		if !isUniqueViolation(err, "boards_slug_key") {
			return err
		}
	}
	return fmt.Errorf("derive slug for %q: %w", title, err)
}

func (s *Store) CreateBoard(ctx context.Context, ownerID uuid.UUID, title, background string) (Board, error) {
	id := uuid.New()
	var b Board
	err := withSlug(ctx, s.db, id, title, func(tx pgx.Tx, slug string) error {
		var err error
		b, err = scanBoard(tx.QueryRow(ctx, `insert into boards(id, title, slug, background, owner_id)
			values($1,$2,$3,$4,$5) returning `+boardCols, id, title, slug, background, ownerID))
		return err
	})
	return b, err
}

// UpdateBoard replaces the given fields in one transaction; a new title always
// regenerates the slug.
func (s *Store) UpdateBoard(ctx context.Context, id uuid.UUID, title, background *string) (Board, error) {
	var b Board
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if err := lockRow(ctx, tx, "boards", id); err != nil {
			return err
		}
		if background != nil {
			if _, err := tx.Exec(ctx, `update boards set background=$1, updated_at=now() where id=$2`, *background, id); err != nil {
				return err
			}
		}
		if title != nil {
			err := withSlug(ctx, tx, id, *title, func(sp pgx.Tx, slug string) error {
				_, err := sp.Exec(ctx, `update boards set title=$1, slug=$2, updated_at=now() where id=$3`, *title, slug, id)
				return err
			})
			if err != nil {
				return err
			}
		}
		var err error
		b, err = scanBoard(tx.QueryRow(ctx, `select `+boardCols+` from boards where id=$1`, id))
		return err
	})
	return b, err
}

// DeleteBoard removes a board with its cards, lists and memberships in one transaction.
func (s *Store) DeleteBoard(ctx context.Context, id uuid.UUID) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if err := lockRow(ctx, tx, "boards", id); err != nil {
			return err
		}
		for _, q := range []string{
			`delete from cards where board_id=$1`,
			`delete from lists where board_id=$1`,
			`delete from board_members where board_id=$1`,
			`delete from boards where id=$1`,
		} {
			if _, err := tx.Exec(ctx, q, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListBoardsFor returns owned and shared boards, most recently updated first.
func (s *Store) ListBoardsFor(ctx context.Context, userID uuid.UUID) ([]BoardView, error) {
	rows, err := s.db.Query(ctx, `
		select `+boardCols+`, 'owner' as role from boards where owner_id=$1
		union all
		select b.id, b.title, coalesce(b.slug,''), b.background, b.owner_id, b.created_at, b.updated_at, m.role
		from boards b join board_members m on m.board_id=b.id
		where m.user_id=$1 and b.owner_id is distinct from $1
		order by updated_at desc, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []BoardView{}
	for rows.Next() {
		var v BoardView
		var role string
		if err := rows.Scan(&v.ID, &v.Title, &v.Slug, &v.Background, &v.OwnerID, &v.CreatedAt, &v.UpdatedAt, &role); err != nil {
			return nil, err
		}
		v.Role = Role(role)
		out = append(out, v)
	}
	return out, rows.Err()
}

// BackfillSlugs assigns slugs to legacy boards that have none.
func (s *Store) BackfillSlugs(ctx context.Context) (int, error) {
	rows, err := s.db.Query(ctx, `select id, title from boards where slug is null or slug='' order by created_at`)
	if err != nil {
		return 0, err
	}
	type legacy struct {
		id    uuid.UUID
		title string
	}
	var todo []legacy
	for rows.Next() {
		var l legacy
		if err := rows.Scan(&l.id, &l.title); err != nil {
			rows.Close()
			return 0, err
		}
		todo = append(todo, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	for i, l := range todo {
		err := withSlug(ctx, s.db, l.id, l.title, func(tx pgx.Tx, slug string) error {
			_, err := tx.Exec(ctx, `update boards set slug=$1 where id=$2`, slug, l.id)
			return err
		})
		if err != nil {
			return i, err
		}
	}
	return len(todo), nil
}

// Members

const memberCols = `m.id, m.board_id, m.user_id, m.role, m.created_at, m.updated_at, u.id, u.name, u.email, u.created_at`

func scanMember(row rowScanner) (BoardMember, error) {
	var m BoardMember
	var u User
	var role string
	err := row.Scan(&m.ID, &m.BoardID, &m.UserID, &role, &m.CreatedAt, &m.UpdatedAt, &u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return BoardMember{}, ErrNotFound
	}
	m.Role = Role(role)
	m.User = &u
	return m, err
}

func (s *Store) ListMembers(ctx context.Context, boardID uuid.UUID) ([]BoardMember, error) {
	rows, err := s.db.Query(ctx, `select `+memberCols+` from board_members m join users u on u.id=m.user_id
		where m.board_id=$1 order by m.created_at, m.id`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []BoardMember{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) GetMember(ctx context.Context, boardID, memberID uuid.UUID) (BoardMember, error) {
	return scanMember(s.db.QueryRow(ctx, `select `+memberCols+` from board_members m join users u on u.id=m.user_id
		where m.id=$1 and m.board_id=$2`, memberID, boardID))
}

// AddMember inserts a membership row; an existing row for the pair is ErrConflict.
func (s *Store) AddMember(ctx context.Context, boardID, userID uuid.UUID, role Role) (BoardMember, error) {
	id := uuid.New()
	_, err := s.db.Exec(ctx, `insert into board_members(id, board_id, user_id, role) values($1,$2,$3,$4)`,
		id, boardID, userID, string(role))
	if isUniqueViolation(err, "board_members_board_user_key") {
		return BoardMember{}, ErrConflict
	}
	if err != nil {
		return BoardMember{}, err
	}
	return s.GetMember(ctx, boardID, id)
}

func (s *Store) UpdateMemberRole(ctx context.Context, boardID, memberID uuid.UUID, role Role) (BoardMember, error) {
	tag, err := s.db.Exec(ctx, `update board_members set role=$1, updated_at=now() where id=$2 and board_id=$3`,
		string(role), memberID, boardID)
	if err != nil {
		return BoardMember{}, err
	}
	if tag.RowsAffected() == 0 {
		return BoardMember{}, ErrNotFound
	}
	return s.GetMember(ctx, boardID, memberID)
}

func (s *Store) DeleteMember(ctx context.Context, boardID, memberID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `delete from board_members where id=$1 and board_id=$2`, memberID, boardID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Lists

const listCols = `id, board_id, title, position, created_at, updated_at`

func scanList(row rowScanner) (List, error) {
	var l List
	err := row.Scan(&l.ID, &l.BoardID, &l.Title, &l.Position, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return List{}, ErrNotFound
	}
	return l, err
}

func (s *Store) ListsByBoard(ctx context.Context, boardID uuid.UUID) ([]List, error) {
	rows, err := s.db.Query(ctx, `select `+listCols+` from lists where board_id=$1 order by position, created_at`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []List{}
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) GetList(ctx context.Context, id uuid.UUID) (List, error) {
	return scanList(s.db.QueryRow(ctx, `select `+listCols+` from lists where id=$1`, id))
}

// CreateList appends a list at the end of the board.
func (s *Store) CreateList(ctx context.Context, boardID uuid.UUID, title string) (List, error) {
	var l List
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		pos, err := listScope.nextPosition(ctx, tx, boardID)
		if err != nil {
			return err
		}
		l, err = scanList(tx.QueryRow(ctx, `insert into lists(id, board_id, title, position) values($1,$2,$3,$4)
			returning `+listCols, uuid.New(), boardID, title, pos))
		return err
	})
	return l, err
}

func (s *Store) RenameList(ctx context.Context, id uuid.UUID, title string) (List, error) {
	return scanList(s.db.QueryRow(ctx, `update lists set title=$1, updated_at=now() where id=$2 returning `+listCols, title, id))
}

// DeleteList removes a list and its cards in one transaction.
func (s *Store) DeleteList(ctx context.Context, id uuid.UUID) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if err := lockRow(ctx, tx, "lists", id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `delete from cards where list_id=$1`, id); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `delete from lists where id=$1`, id)
		return err
	})
}

// Cards

const cardCols = `id, list_id, board_id, title, description, position, labels, due_date, checklist, comments, created_at, updated_at`

func scanCard(row rowScanner) (Card, error) {
	var c Card
	var checklist, comments []byte
	err := row.Scan(&c.ID, &c.ListID, &c.BoardID, &c.Title, &c.Description, &c.Position, &c.Labels, &c.DueDate,
		&checklist, &comments, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Card{}, ErrNotFound
	}
	if err != nil {
		return Card{}, err
	}
	if err := json.Unmarshal(checklist, &c.Checklist); err != nil {
		return Card{}, fmt.Errorf("card %s checklist: %w", c.ID, err)
	}
	if err := json.Unmarshal(comments, &c.Comments); err != nil {
		return Card{}, fmt.Errorf("card %s comments: %w", c.ID, err)
	}
	if c.Labels == nil {
		c.Labels = []string{}
	}
	if c.Checklist == nil {
		c.Checklist = []ChecklistItem{}
	}
	if c.Comments == nil {
		c.Comments = []Comment{}
	}
	return c, nil
}

func (s *Store) queryCards(ctx context.Context, q string, args ...any) ([]Card, error) {
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Card{}
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CardsByBoard(ctx context.Context, boardID uuid.UUID) ([]Card, error) {
	return s.queryCards(ctx, `select `+cardCols+` from cards where board_id=$1 order by position, created_at`, boardID)
}

func (s *Store) CardsByList(ctx context.Context, listID uuid.UUID) ([]Card, error) {
	return s.queryCards(ctx, `select `+cardCols+` from cards where list_id=$1 order by position, created_at`, listID)
}

func (s *Store) GetCard(ctx context.Context, id uuid.UUID) (Card, error) {
	return scanCard(s.db.QueryRow(ctx, `select `+cardCols+` from cards where id=$1`, id))
}

// CreateCard appends a card to the end of list, copying the list's board.
func (s *Store) CreateCard(ctx context.Context, list List, title string) (Card, error) {
	var c Card
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		pos, err := cardScope.nextPosition(ctx, tx, list.ID)
		if err != nil {
			return err
		}
		c, err = scanCard(tx.QueryRow(ctx, `insert into cards(id, list_id, board_id, title, position)
			select $1::uuid, l.id, l.board_id, $3::text, $4::int from lists l where l.id=$2
			returning `+cardCols, uuid.New(), list.ID, title, pos))
		return err
	})
	return c, err
}

// UpdateCard replaces the fields present in p and leaves the rest untouched.
func (s *Store) UpdateCard(ctx context.Context, id uuid.UUID, p CardPatch) (Card, error) {
	if p.empty() {
		return s.GetCard(ctx, id)
	}
	set := []string{}
	args := []any{}
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if p.Title != nil {
		add("title", *p.Title)
	}
	if p.Description != nil {
		add("description", *p.Description)
	}
	if p.Labels != nil {
		add("labels", *p.Labels)
	}
	if p.DueDate.Set {
		add("due_date", p.DueDate.Value)
	}
	if p.Checklist != nil {
		raw, err := json.Marshal(*p.Checklist)
		if err != nil {
			return Card{}, err
		}
		add("checklist", string(raw))
	}
	if p.Comments != nil {
		raw, err := json.Marshal(*p.Comments)
		if err != nil {
			return Card{}, err
		}
		add("comments", string(raw))
	}
	args = append(args, id)
	q := fmt.Sprintf(`update cards set %s, updated_at=now() where id=$%d returning %s`,
		strings.Join(set, ", "), len(args), cardCols)
	return scanCard(s.db.QueryRow(ctx, q, args...))
}

// AppendComment adds one comment to the end of the card's comments.
func (s *Store) AppendComment(ctx context.Context, id uuid.UUID, text string, at time.Time) (Card, error) {
	raw, err := json.Marshal([]Comment{{ID: uuid.New(), Text: text, CreatedAt: at.UTC()}})
	if err != nil {
		return Card{}, err
	}
	return scanCard(s.db.QueryRow(ctx, `update cards set comments=comments || $1::jsonb, updated_at=now()
		where id=$2 returning `+cardCols, string(raw), id))
}

func (s *Store) DeleteCard(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `delete from cards where id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
