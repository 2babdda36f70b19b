package locadora

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/ilkoid/apichat/pkg/utils"
)

// SeedSize - записей в каждой коллекции демо данных.
const SeedSize = 100

var (
	seedTitulos    = []string{"Filme", "Aventura", "Mistério", "Comédia", "Drama"}
	seedGeneros    = []string{"Ação", "Drama", "Comédia", "Animação", "Ficção Científica", "Romance", "Terror"}
	seedNomes      = []string{"João", "Maria", "Pedro", "Ana", "Lucas", "Clara", "Rafael", "Beatriz", "Gabriel", "Juliana"}
	seedSobrenomes = []string{"Silva", "Santos", "Almeida", "Costa", "Oliveira", "Mendes", "Lima", "Souza", "Rocha", "Pereira"}
)

// Dataset - сгенерированные демо данные.
type Dataset struct {
	Filmes   []Filme
	Clientes []Cliente
	Alugueis []Aluguel
}

// Generate строит демо данные. Одинаковый seed - одинаковые данные.
func Generate(seed int64) Dataset {
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))

	filmes := generateFilmes(rng)
	clientes := generateClientes(rng)
	return Dataset{
		Filmes:   filmes,
		Clientes: clientes,
		Alugueis: generateAlugueis(rng, len(clientes), filmes),
	}
}

func generateFilmes(rng *rand.Rand) []Filme {
	filmes := make([]Filme, 0, SeedSize)
	for i := 1; i <= SeedSize; i++ {
		filmes = append(filmes, Filme{
			ID:          int64(i),
			Titulo:      fmt.Sprintf("%s %d", pick(rng, seedTitulos), i),
			Genero:      pick(rng, seedGeneros),
			Ano:         1970 + rng.IntN(2025-1970+1),
			Disponivel:  rng.Float64() > 0.3,
			PrecoDiario: round2(4 + rng.Float64()*3),
		})
	}
	return filmes
}

func generateClientes(rng *rand.Rand) []Cliente {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 26, 0, 0, 0, 0, time.UTC)

	clientes := make([]Cliente, 0, SeedSize)
	for i := 1; i <= SeedSize; i++ {
		nome := pick(rng, seedNomes) + " " + pick(rng, seedSobrenomes)
		clientes = append(clientes, Cliente{
			ID:    int64(i),
			Nome:  nome,
			Email: strings.Replace(strings.ToLower(nome), " ", ".", 1) + "@email.com",
			Telefone: fmt.Sprintf("(%d) 9%d-%04d",
				10+rng.IntN(90), 10000+rng.IntN(90000), rng.IntN(10000)),
			DataCadastro: randomDate(rng, from, to).Format(dateLayout),
		})
	}
	return clientes
}

func generateAlugueis(rng *rand.Rand, clientes int, filmes []Filme) []Aluguel {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 26, 0, 0, 0, 0, time.UTC)

	alugueis := make([]Aluguel, 0, SeedSize)
	for i := 1; i <= SeedSize; i++ {
		start := randomDate(rng, from, to)
		dias := 1 + rng.IntN(7)
		due := start.AddDate(0, 0, dias)
		filme := filmes[rng.IntN(len(filmes))]
		concluido := rng.Float64() > 0.7

		a := Aluguel{
			ID:                    int64(i),
			ClienteID:             int64(1 + rng.IntN(clientes)),
			FilmeID:               filme.ID,
			DataAluguel:           start.Format(dateLayout),
			DataDevolucaoPrevista: due.Format(dateLayout),
			ValorTotal:            round2(filme.PrecoDiario * float64(dias)),
			Status:                StatusAtivo,
		}
		if concluido {
			returned := randomDate(rng, start, due).Format(dateLayout)
			a.DataDevolucaoReal = &returned
			a.Status = StatusConcluido
		}
		alugueis = append(alugueis, a)
	}
	return alugueis
}

// Seed заполняет пустую базу демо данными. Непустая база не трогается.
func (s *Store) Seed(ctx context.Context, seed int64) error {
	empty, err := s.Empty(ctx)
	if err != nil {
		return fmt.Errorf("check database: %w", err)
	}
	if !empty {
		utils.Debug("Database already populated, seed skipped")
		return nil
	}

	data := Generate(seed)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, f := range data.Filmes {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO filmes (id, titulo, genero, ano, disponivel, preco_diario) VALUES (?, ?, ?, ?, ?, ?)",
			f.ID, f.Titulo, f.Genero, f.Ano, f.Disponivel, f.PrecoDiario); err != nil {
			return fmt.Errorf("seed filme %d: %w", f.ID, err)
		}
	}
	for _, c := range data.Clientes {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO clientes (id, nome, email, telefone, data_cadastro) VALUES (?, ?, ?, ?, ?)",
			c.ID, c.Nome, c.Email, c.Telefone, c.DataCadastro); err != nil {
			return fmt.Errorf("seed cliente %d: %w", c.ID, err)
		}
	}
	for _, a := range data.Alugueis {
		if err := s.insertAluguel(ctx, tx, a); err != nil {
			return fmt.Errorf("seed aluguel %d: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	utils.Info("Demo database seeded",
		"filmes", len(data.Filmes),
		"clientes", len(data.Clientes),
		"alugueis", len(data.Alugueis))
	return nil
}

func pick(rng *rand.Rand, items []string) string {
	return items[rng.IntN(len(items))]
}

// randomDate - случайная дата в [from, to].
func randomDate(rng *rand.Rand, from, to time.Time) time.Time {
	span := to.Sub(from)
	if span <= 0 {
		return from
	}
	return from.Add(time.Duration(rng.Int64N(int64(span) + 1)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
