package httpserver

import (
	"encoding/json"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/readshelf/catalog-service/internal/catalog"
	"github.com/readshelf/catalog-service/internal/search"
)

var validate = validator.New()

// bookRequest is the write payload for create and update, accepted as JSON
// or as multipart form fields when a cover file accompanies the write.
type bookRequest struct {
	Title            string   `json:"title" validate:"required,max=500"`
	ShortDescription string   `json:"short_description" validate:"required,max=5000"`
	Year             int      `json:"year" validate:"required,gt=0,lte=2100"`
	Publisher        string   `json:"publisher" validate:"required,max=500"`
	Author           string   `json:"author" validate:"required,max=500"`
	Pages            int      `json:"pages" validate:"required,gt=0"`
	GenreIDs         []string `json:"genre_ids" validate:"dive,uuid"`
}

func (br *bookRequest) toInput() (catalog.BookInput, error) {
	genreIDs := make([]uuid.UUID, 0, len(br.GenreIDs))
	for _, raw := range br.GenreIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return catalog.BookInput{}, err
		}
		genreIDs = append(genreIDs, id)
	}
	return catalog.BookInput{
		Title:            strings.TrimSpace(br.Title),
		ShortDescription: strings.TrimSpace(br.ShortDescription),
		Year:             br.Year,
		Publisher:        strings.TrimSpace(br.Publisher),
		Author:           strings.TrimSpace(br.Author),
		Pages:            br.Pages,
		GenreIDs:         genreIDs,
	}, nil
}

// searchBooks handles GET /api/v1/books.
//
// Filters arrive as query parameters (title, author, genres, years,
// pages_min, pages_max); absent and malformed values simply don't filter.
// The page parameter is 1-based and defaults to 1.
func (s *Server) searchBooks(w http.ResponseWriter, r *http.Request) {
	criteria := search.ParseCriteria(r.URL.Query())

	page := 1
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if parsed, err := strconv.Atoi(pageStr); err == nil {
			page = parsed
		}
	}

	result, err := s.catalog.Search(r.Context(), criteria, page)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResultToResponse(result))
}

// getBook handles GET /api/v1/books/{bookID}.
func (s *Server) getBook(w http.ResponseWriter, r *http.Request) {
	bookID, ok := parseUUID(w, chi.URLParam(r, "bookID"), "book_id")
	if !ok {
		return
	}

	detail, err := s.catalog.GetBook(r.Context(), bookID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domainDetailToResponse(detail))
}

// listYears handles GET /api/v1/meta/years.
func (s *Server) listYears(w http.ResponseWriter, r *http.Request) {
	years, err := s.catalog.ListYears(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if years == nil {
		years = []int{}
	}
	writeJSON(w, http.StatusOK, map[string][]int{"years": years})
}

// listGenres handles GET /api/v1/meta/genres.
func (s *Server) listGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := s.catalog.ListGenres(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	responses := make([]genreResponse, len(genres))
	for i, g := range genres {
		responses[i] = genreResponse{ID: g.ID.String(), Name: g.Name}
	}
	writeJSON(w, http.StatusOK, map[string][]genreResponse{"genres": responses})
}

// createBook handles POST /api/v1/books.
func (s *Server) createBook(w http.ResponseWriter, r *http.Request) {
	input, upload, ok := s.parseBookRequest(w, r)
	if !ok {
		return
	}

	detail, err := s.catalog.CreateBook(r.Context(), input, upload)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, domainDetailToResponse(detail))
}

// updateBook handles PUT /api/v1/books/{bookID}.
func (s *Server) updateBook(w http.ResponseWriter, r *http.Request) {
	bookID, ok := parseUUID(w, chi.URLParam(r, "bookID"), "book_id")
	if !ok {
		return
	}

	input, upload, ok := s.parseBookRequest(w, r)
	if !ok {
		return
	}

	detail, err := s.catalog.UpdateBook(r.Context(), bookID, input, upload)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domainDetailToResponse(detail))
}

// deleteBook handles DELETE /api/v1/books/{bookID}.
func (s *Server) deleteBook(w http.ResponseWriter, r *http.Request) {
	bookID, ok := parseUUID(w, chi.URLParam(r, "bookID"), "book_id")
	if !ok {
		return
	}

	if err := s.catalog.DeleteBook(r.Context(), bookID); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseBookRequest decodes a book write from either a JSON body or a
// multipart form carrying an optional cover file. On failure the error
// response has been written and ok is false.
func (s *Server) parseBookRequest(w http.ResponseWriter, r *http.Request) (catalog.BookInput, *catalog.CoverUpload, bool) {
	var req bookRequest
	var upload *catalog.CoverUpload

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return catalog.BookInput{}, nil, false
		}

		req.Title = r.FormValue("title")
		req.ShortDescription = r.FormValue("short_description")
		req.Publisher = r.FormValue("publisher")
		req.Author = r.FormValue("author")
		req.Year, _ = strconv.Atoi(r.FormValue("year"))
		req.Pages, _ = strconv.Atoi(r.FormValue("pages"))
		req.GenreIDs = r.Form["genre_ids"]

		file, header, err := r.FormFile("cover")
		switch {
		case err == http.ErrMissingFile:
			// Cover is optional.
		case err != nil:
			writeError(w, http.StatusBadRequest, "invalid cover upload")
			return catalog.BookInput{}, nil, false
		default:
			// The file is read by the catalog service after this returns;
			// the server cleans up the multipart form when the handler ends.
			upload = &catalog.CoverUpload{Filename: header.Filename, Data: file}
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return catalog.BookInput{}, nil, false
		}
	}

	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid book payload: "+err.Error())
		return catalog.BookInput{}, nil, false
	}

	input, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "genre_ids must be valid UUIDs")
		return catalog.BookInput{}, nil, false
	}

	return input, upload, true
}
