package locadora

import (
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ilkoid/apichat/pkg/utils"
)

//go:embed openapi.yaml
var openapiSpec []byte

// Spec возвращает встроенное OpenAPI описание backend.
func Spec() []byte {
	return openapiSpec
}

// API - HTTP обработчики backend.
type API struct {
	store *Store
}

// NewAPI создаёт обработчики поверх хранилища.
func NewAPI(store *Store) *API {
	return &API{store: store}
}

// Handler возвращает роутер backend.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /openapi.yaml", a.handleSpec)

	mux.HandleFunc("GET /filmes", a.listFilmes)
	mux.HandleFunc("POST /filmes", a.createFilme)
	mux.HandleFunc("PUT /filmes", a.updateFilme)
	mux.HandleFunc("GET /filmes/{id}", a.getFilme)
	mux.HandleFunc("DELETE /filmes/{id}", a.deleteFilme)

	mux.HandleFunc("GET /clientes", a.listClientes)
	mux.HandleFunc("POST /clientes", a.createCliente)
	mux.HandleFunc("GET /clientes/{id}", a.getCliente)

	mux.HandleFunc("GET /alugueis", a.listAlugueis)
	mux.HandleFunc("POST /alugueis", a.createAluguel)
	mux.HandleFunc("POST /devolucoes", a.returnAluguel)

	return mux
}

func (a *API) handleSpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openapiSpec)
}

// --- filmes ---

func (a *API) listFilmes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := FilmeFilter{
		Titulo: q.Get("titulo"),
		Genero: q.Get("genero"),
	}

	if v := q.Get("ano"); v != "" {
		ano, err := strconv.Atoi(v)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "ano deve ser um número")
			return
		}
		filter.Ano = ano
	}
	if v := q.Get("disponivel"); v != "" {
		disponivel, err := strconv.ParseBool(v)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "disponivel deve ser true ou false")
			return
		}
		filter.Disponivel = &disponivel
	}

	filmes, err := a.store.ListFilmes(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, filmes)
}

func (a *API) getFilme(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	filme, err := a.store.GetFilme(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, filme)
}

func (a *API) createFilme(w http.ResponseWriter, r *http.Request) {
	var f Filme
	if !decodeBody(w, r, &f) {
		return
	}
	if strings.TrimSpace(f.Titulo) == "" {
		writeMessage(w, http.StatusBadRequest, "titulo é obrigatório")
		return
	}
	f.ID = 0

	created, err := a.store.CreateFilme(r.Context(), f)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// filmePatch - частичное изменение фильма: nil поля не меняются.
type filmePatch struct {
	ID          int64    `json:"id"`
	Titulo      *string  `json:"titulo"`
	Genero      *string  `json:"genero"`
	Ano         *int     `json:"ano"`
	Disponivel  *bool    `json:"disponivel"`
	PrecoDiario *float64 `json:"precoDiario"`
}

func (a *API) updateFilme(w http.ResponseWriter, r *http.Request) {
	var patch filmePatch
	if !decodeBody(w, r, &patch) {
		return
	}
	if patch.ID <= 0 {
		writeMessage(w, http.StatusBadRequest, "id é obrigatório")
		return
	}

	filme, err := a.store.GetFilme(r.Context(), patch.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if patch.Titulo != nil {
		filme.Titulo = *patch.Titulo
	}
	if patch.Genero != nil {
		filme.Genero = *patch.Genero
	}
	if patch.Ano != nil {
		filme.Ano = *patch.Ano
	}
	if patch.Disponivel != nil {
		filme.Disponivel = *patch.Disponivel
	}
	if patch.PrecoDiario != nil {
		filme.PrecoDiario = *patch.PrecoDiario
	}

	updated, err := a.store.UpdateFilme(r.Context(), filme)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) deleteFilme(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.store.DeleteFilme(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- clientes ---

func (a *API) listClientes(w http.ResponseWriter, r *http.Request) {
	clientes, err := a.store.ListClientes(r.Context(), r.URL.Query().Get("nome"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, clientes)
}

func (a *API) getCliente(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	cliente, err := a.store.GetCliente(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cliente)
}

func (a *API) createCliente(w http.ResponseWriter, r *http.Request) {
	var c Cliente
	if !decodeBody(w, r, &c) {
		return
	}
	if strings.TrimSpace(c.Nome) == "" {
		writeMessage(w, http.StatusBadRequest, "nome é obrigatório")
		return
	}
	c.ID, c.DataCadastro = 0, ""

	created, err := a.store.CreateCliente(r.Context(), c)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// --- alugueis ---

func (a *API) listAlugueis(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := AluguelFilter{Status: q.Get("status")}

	for name, dest := range map[string]*int64{"clienteId": &filter.ClienteID, "filmeId": &filter.FilmeID} {
		if v := q.Get(name); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				writeMessage(w, http.StatusBadRequest, name+" deve ser um número")
				return
			}
			*dest = n
		}
	}

	alugueis, err := a.store.ListAlugueis(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alugueis)
}

func (a *API) createAluguel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClienteID int64 `json:"clienteId"`
		FilmeID   int64 `json:"filmeId"`
		Dias      int   `json:"dias"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ClienteID <= 0 || req.FilmeID <= 0 || req.Dias <= 0 {
		writeMessage(w, http.StatusBadRequest, "clienteId, filmeId e dias são obrigatórios")
		return
	}

	aluguel, err := a.store.Rent(r.Context(), req.ClienteID, req.FilmeID, req.Dias)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, aluguel)
}

func (a *API) returnAluguel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AluguelID int64 `json:"aluguelId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.AluguelID <= 0 {
		writeMessage(w, http.StatusBadRequest, "aluguelId é obrigatório")
		return
	}

	aluguel, err := a.store.Return(r.Context(), req.AluguelID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, aluguel)
}

// --- helpers ---

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeMessage(w, http.StatusBadRequest, "id inválido")
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		writeMessage(w, http.StatusBadRequest, "JSON inválido: "+err.Error())
		return false
	}
	return true
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeMessage(w, http.StatusNotFound, "registro não encontrado")
	case errors.Is(err, ErrUnavailable):
		writeMessage(w, http.StatusConflict, "filme indisponível para aluguel")
	default:
		utils.Error("Store operation failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "erro interno")
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.Warn("Failed to write JSON response", "error", err)
	}
}
