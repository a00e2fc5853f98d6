package calendar

// DefaultPageSize используется, когда размер страницы не задан или некорректен.
const DefaultPageSize = 10

// MaxPageSize ограничивает размер страницы сверху.
const MaxPageSize = 100

// Page описывает одну страницу элементов.
type Page[T any] struct {
	Items      []T // элементы на текущей странице
	Page       int // номер страницы (с 1)
	PageSize   int // количество элементов на странице
	HasNext    bool
	HasPrev    bool
	Total      int // общее количество элементов
	TotalPages int
}

// Paginate возвращает срез items для указанной страницы и метаданные.
// page нумеруется с 1. При некорректных значениях используются дефолты.
func Paginate[T any](items []T, page, pageSize, defaultPageSize int) Page[T] {
	if defaultPageSize <= 0 {
		defaultPageSize = DefaultPageSize
	}

	total := len(items)

	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if page <= 0 {
		page = 1
	}

	// (page-1)*pageSize может переполнить int, поэтому сравниваем через деление.
	start := total
	if page-1 <= total/pageSize {
		start = min((page-1)*pageSize, total)
	}

	end := min(start+pageSize, total)

	pageItems := items[start:end]

	totalPages := (total + pageSize - 1) / pageSize

	return Page[T]{
		Items:      pageItems,
		Page:       page,
		PageSize:   pageSize,
		HasNext:    end < total,
		HasPrev:    page > 1,
		Total:      total,
		TotalPages: totalPages,
	}
}
