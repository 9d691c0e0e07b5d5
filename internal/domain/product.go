package domain

type Product struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Price          Money  `json:"price"`
	Img            string `json:"img"`
	ProductBrandID int    `json:"productBrandId"`
	ProductTypeID  int    `json:"productTypeId"`
	ProductBrand   string `json:"productBrand"`
	ProductType    string `json:"productType"`
	Quantity       int    `json:"quantity"`
}

type ProductBrand struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type ProductType struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Pagination is the backend's paged list envelope.
type Pagination[T any] struct {
	PageSize  int `json:"pageSize"`
	PageIndex int `json:"pageIndex"`
	Count     int `json:"count"`
	Data      []T `json:"data"`
}
