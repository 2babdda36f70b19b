// Package locadora - демонстрационный backend проката фильмов.
//
// REST API поверх SQLite с тремя коллекциями (filmes, clientes, alugueis)
// и собственным OpenAPI описанием, из которого apichat строит инструменты.
package locadora

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound - запись не существует.
var ErrNotFound = errors.New("record not found")

// dateLayout - формат дат в API (как в исходных данных).
const dateLayout = "2006-01-02"

// Filme - фильм каталога.
type Filme struct {
	ID          int64   `json:"id"`
	Titulo      string  `json:"titulo"`
	Genero      string  `json:"genero"`
	Ano         int     `json:"ano"`
	Disponivel  bool    `json:"disponivel"`
	PrecoDiario float64 `json:"precoDiario"`
}

// Cliente - клиент проката.
type Cliente struct {
	ID           int64  `json:"id"`
	Nome         string `json:"nome"`
	Email        string `json:"email"`
	Telefone     string `json:"telefone"`
	DataCadastro string `json:"dataCadastro"`
}

// Aluguel - аренда фильма клиентом.
type Aluguel struct {
	ID                    int64   `json:"id"`
	ClienteID             int64   `json:"clienteId"`
	FilmeID               int64   `json:"filmeId"`
	DataAluguel           string  `json:"dataAluguel"`
	DataDevolucaoPrevista string  `json:"dataDevolucaoPrevista"`
	DataDevolucaoReal     *string `json:"dataDevolucaoReal"`
	ValorTotal            float64 `json:"valorTotal"`
	Status                string  `json:"status"` // "ativo" | "concluido"
}

const (
	StatusAtivo     = "ativo"
	StatusConcluido = "concluido"
)

// FilmeFilter - фильтры списка фильмов. Нулевые поля не фильтруют.
type FilmeFilter struct {
	Titulo     string // подстрока, без учёта регистра
	Genero     string
	Ano        int
	Disponivel *bool
}

// AluguelFilter - фильтры списка аренд.
type AluguelFilter struct {
	Status    string
	ClienteID int64
	FilmeID   int64
}

// Store - SQLite хранилище данных проката.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open открывает (или создаёт) базу. ":memory:" - база в памяти.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Одно соединение: база в памяти живёт в рамках соединения
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close закрывает базу.
func (s *Store) Close() error {
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS filmes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			titulo TEXT NOT NULL,
			genero TEXT NOT NULL,
			ano INTEGER NOT NULL,
			disponivel INTEGER NOT NULL DEFAULT 1,
			preco_diario REAL NOT NULL
		);

		CREATE TABLE IF NOT EXISTS clientes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			nome TEXT NOT NULL,
			email TEXT NOT NULL,
			telefone TEXT NOT NULL,
			data_cadastro TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS alugueis (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			cliente_id INTEGER NOT NULL REFERENCES clientes(id),
			filme_id INTEGER NOT NULL REFERENCES filmes(id),
			data_aluguel TEXT NOT NULL,
			data_devolucao_prevista TEXT NOT NULL,
			data_devolucao_real TEXT,
			valor_total REAL NOT NULL,
			status TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_alugueis_cliente ON alugueis(cliente_id);
		CREATE INDEX IF NOT EXISTS idx_alugueis_status ON alugueis(status);
	`
	_, err := db.Exec(schema)
	return err
}

// Empty сообщает что в базе нет фильмов.
func (s *Store) Empty(ctx context.Context) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM filmes").Scan(&n); err != nil {
		return false, err
	}
	return n == 0, nil
}

// --- filmes ---

const filmeColumns = "id, titulo, genero, ano, disponivel, preco_diario"

func scanFilme(row interface{ Scan(...any) error }) (Filme, error) {
	var f Filme
	err := row.Scan(&f.ID, &f.Titulo, &f.Genero, &f.Ano, &f.Disponivel, &f.PrecoDiario)
	return f, err
}

// ListFilmes возвращает фильмы по фильтру, упорядоченные по id.
func (s *Store) ListFilmes(ctx context.Context, filter FilmeFilter) ([]Filme, error) {
	var (
		where []string
		args  []any
	)
	if filter.Titulo != "" {
		where = append(where, "LOWER(titulo) LIKE ?")
		args = append(args, "%"+strings.ToLower(filter.Titulo)+"%")
	}
	if filter.Genero != "" {
		where = append(where, "LOWER(genero) = ?")
		args = append(args, strings.ToLower(filter.Genero))
	}
	if filter.Ano != 0 {
		where = append(where, "ano = ?")
		args = append(args, filter.Ano)
	}
	if filter.Disponivel != nil {
		where = append(where, "disponivel = ?")
		args = append(args, *filter.Disponivel)
	}

	query := "SELECT " + filmeColumns + " FROM filmes"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list filmes: %w", err)
	}
	defer rows.Close()

	filmes := make([]Filme, 0)
	for rows.Next() {
		f, err := scanFilme(rows)
		if err != nil {
			return nil, fmt.Errorf("scan filme: %w", err)
		}
		filmes = append(filmes, f)
	}
	return filmes, rows.Err()
}

// GetFilme возвращает фильм по id.
func (s *Store) GetFilme(ctx context.Context, id int64) (Filme, error) {
	f, err := scanFilme(s.db.QueryRowContext(ctx, "SELECT "+filmeColumns+" FROM filmes WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Filme{}, ErrNotFound
	}
	return f, err
}

// CreateFilme добавляет фильм и возвращает его с id.
func (s *Store) CreateFilme(ctx context.Context, f Filme) (Filme, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO filmes (titulo, genero, ano, disponivel, preco_diario) VALUES (?, ?, ?, ?, ?)",
		f.Titulo, f.Genero, f.Ano, f.Disponivel, f.PrecoDiario)
	if err != nil {
		return Filme{}, fmt.Errorf("insert filme: %w", err)
	}
	f.ID, err = res.LastInsertId()
	return f, err
}

// UpdateFilme заменяет поля фильма.
func (s *Store) UpdateFilme(ctx context.Context, f Filme) (Filme, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE filmes SET titulo = ?, genero = ?, ano = ?, disponivel = ?, preco_diario = ? WHERE id = ?",
		f.Titulo, f.Genero, f.Ano, f.Disponivel, f.PrecoDiario, f.ID)
	if err != nil {
		return Filme{}, fmt.Errorf("update filme: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Filme{}, ErrNotFound
	}
	return f, nil
}

// DeleteFilme удаляет фильм.
func (s *Store) DeleteFilme(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM filmes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete filme: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- clientes ---

const clienteColumns = "id, nome, email, telefone, data_cadastro"

func scanCliente(row interface{ Scan(...any) error }) (Cliente, error) {
	var c Cliente
	err := row.Scan(&c.ID, &c.Nome, &c.Email, &c.Telefone, &c.DataCadastro)
	return c, err
}

// ListClientes возвращает клиентов; nome - подстрока имени.
func (s *Store) ListClientes(ctx context.Context, nome string) ([]Cliente, error) {
	query := "SELECT " + clienteColumns + " FROM clientes"
	var args []any
	if nome != "" {
		query += " WHERE LOWER(nome) LIKE ?"
		args = append(args, "%"+strings.ToLower(nome)+"%")
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list clientes: %w", err)
	}
	defer rows.Close()

	clientes := make([]Cliente, 0)
	for rows.Next() {
		c, err := scanCliente(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cliente: %w", err)
		}
		clientes = append(clientes, c)
	}
	return clientes, rows.Err()
}

// GetCliente возвращает клиента по id.
func (s *Store) GetCliente(ctx context.Context, id int64) (Cliente, error) {
	c, err := scanCliente(s.db.QueryRowContext(ctx, "SELECT "+clienteColumns+" FROM clientes WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Cliente{}, ErrNotFound
	}
	return c, err
}

// CreateCliente добавляет клиента.
func (s *Store) CreateCliente(ctx context.Context, c Cliente) (Cliente, error) {
	if c.DataCadastro == "" {
		c.DataCadastro = s.now().Format(dateLayout)
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO clientes (nome, email, telefone, data_cadastro) VALUES (?, ?, ?, ?)",
		c.Nome, c.Email, c.Telefone, c.DataCadastro)
	if err != nil {
		return Cliente{}, fmt.Errorf("insert cliente: %w", err)
	}
	c.ID, err = res.LastInsertId()
	return c, err
}

// --- alugueis ---

const aluguelColumns = "id, cliente_id, filme_id, data_aluguel, data_devolucao_prevista, data_devolucao_real, valor_total, status"

func scanAluguel(row interface{ Scan(...any) error }) (Aluguel, error) {
	var (
		a        Aluguel
		returned sql.NullString
	)
	err := row.Scan(&a.ID, &a.ClienteID, &a.FilmeID, &a.DataAluguel, &a.DataDevolucaoPrevista, &returned, &a.ValorTotal, &a.Status)
	if returned.Valid {
		a.DataDevolucaoReal = &returned.String
	}
	return a, err
}

// ListAlugueis возвращает аренды по фильтру.
func (s *Store) ListAlugueis(ctx context.Context, filter AluguelFilter) ([]Aluguel, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.ClienteID != 0 {
		where = append(where, "cliente_id = ?")
		args = append(args, filter.ClienteID)
	}
	if filter.FilmeID != 0 {
		where = append(where, "filme_id = ?")
		args = append(args, filter.FilmeID)
	}

	query := "SELECT " + aluguelColumns + " FROM alugueis"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alugueis: %w", err)
	}
	defer rows.Close()

	alugueis := make([]Aluguel, 0)
	for rows.Next() {
		a, err := scanAluguel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan aluguel: %w", err)
		}
		alugueis = append(alugueis, a)
	}
	return alugueis, rows.Err()
}

// GetAluguel возвращает аренду по id.
func (s *Store) GetAluguel(ctx context.Context, id int64) (Aluguel, error) {
	a, err := scanAluguel(s.db.QueryRowContext(ctx, "SELECT "+aluguelColumns+" FROM alugueis WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Aluguel{}, ErrNotFound
	}
	return a, err
}

// ErrUnavailable - фильм уже в аренде.
var ErrUnavailable = errors.New("filme indisponível")

// Rent оформляет аренду на dias дней: считает сумму по дневной цене
// и помечает фильм недоступным.
func (s *Store) Rent(ctx context.Context, clienteID, filmeID int64, dias int) (Aluguel, error) {
	if dias <= 0 {
		return Aluguel{}, fmt.Errorf("dias must be positive")
	}
	if _, err := s.GetCliente(ctx, clienteID); err != nil {
		return Aluguel{}, err
	}
	filme, err := s.GetFilme(ctx, filmeID)
	if err != nil {
		return Aluguel{}, err
	}
	if !filme.Disponivel {
		return Aluguel{}, ErrUnavailable
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Aluguel{}, err
	}
	defer tx.Rollback()

	start := s.now()
	a := Aluguel{
		ClienteID:             clienteID,
		FilmeID:               filmeID,
		DataAluguel:           start.Format(dateLayout),
		DataDevolucaoPrevista: start.AddDate(0, 0, dias).Format(dateLayout),
		ValorTotal:            round2(filme.PrecoDiario * float64(dias)),
		Status:                StatusAtivo,
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO alugueis (cliente_id, filme_id, data_aluguel, data_devolucao_prevista, valor_total, status) VALUES (?, ?, ?, ?, ?, ?)",
		a.ClienteID, a.FilmeID, a.DataAluguel, a.DataDevolucaoPrevista, a.ValorTotal, a.Status)
	if err != nil {
		return Aluguel{}, fmt.Errorf("insert aluguel: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return Aluguel{}, err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE filmes SET disponivel = 0 WHERE id = ?", filmeID); err != nil {
		return Aluguel{}, fmt.Errorf("update filme: %w", err)
	}
	return a, tx.Commit()
}

// Return фиксирует возврат: аренда завершается, фильм снова доступен.
func (s *Store) Return(ctx context.Context, id int64) (Aluguel, error) {
	a, err := s.GetAluguel(ctx, id)
	if err != nil {
		return Aluguel{}, err
	}
	if a.Status == StatusConcluido {
		return a, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Aluguel{}, err
	}
	defer tx.Rollback()

	today := s.now().Format(dateLayout)
	if _, err := tx.ExecContext(ctx,
		"UPDATE alugueis SET status = ?, data_devolucao_real = ? WHERE id = ?",
		StatusConcluido, today, id); err != nil {
		return Aluguel{}, fmt.Errorf("update aluguel: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE filmes SET disponivel = 1 WHERE id = ?", a.FilmeID); err != nil {
		return Aluguel{}, fmt.Errorf("update filme: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Aluguel{}, err
	}

	a.Status = StatusConcluido
	a.DataDevolucaoReal = &today
	return a, nil
}

// insertAluguel записывает готовую аренду (используется при генерации данных).
func (s *Store) insertAluguel(ctx context.Context, tx *sql.Tx, a Aluguel) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO alugueis (id, cliente_id, filme_id, data_aluguel, data_devolucao_prevista, data_devolucao_real, valor_total, status) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		a.ID, a.ClienteID, a.FilmeID, a.DataAluguel, a.DataDevolucaoPrevista, a.DataDevolucaoReal, a.ValorTotal, a.Status)
	return err
}
