/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package crptapi

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDocument_JSONFieldNames(t *testing.T) {
	data, err := json.Marshal(SampleDocument())
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	require.ElementsMatch(t, []string{
		"description", "doc_id", "doc_status", "doc_type", "importRequest", "owner_inn", "participant_inn",
		"producer_inn", "production_date", "production_type", "products", "reg_date", "reg_number",
	}, mapKeys(doc))

	var products []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(doc["products"], &products))
	require.Len(t, products, 1)
	require.ElementsMatch(t, []string{
		"certificate_document", "certificate_document_date", "certificate_document_number", "owner_inn",
		"producer_inn", "production_date", "tnved_code", "uit_code", "uitu_code",
	}, mapKeys(products[0]))
}

func TestDocument_EmptyFieldsAreSent(t *testing.T) {
	data, err := json.Marshal(&Document{DocType: DocTypeLPIntroduceGoods, Products: []Product{{}}})
	require.NoError(t, err)
	require.Contains(t, string(data), `"description":""`)
	require.Contains(t, string(data), `"importRequest":false`)
}

func TestDocument_Validate(t *testing.T) {
	require.NoError(t, SampleDocument().Validate())

	tests := []struct {
		name       string
		modify     func(doc *Document)
		wantFields []string
	}{
		{
			name:       "missing doc type",
			modify:     func(doc *Document) { doc.DocType = "" },
			wantFields: []string{"doc_type"},
		},
		{
			name:       "no products",
			modify:     func(doc *Document) { doc.Products = []Product{} },
			wantFields: []string{"products"},
		},
		{
			name: "bad dates",
			modify: func(doc *Document) {
				doc.ProductionDate = "2020/01/23"
				doc.Products[0].CertificateDocumentDate = "yesterday"
			},
			wantFields: []string{"production_date", "products[0].certificate_document_date"},
		},
		{
			name: "empty optional dates",
			modify: func(doc *Document) {
				doc.RegDate = ""
				doc.Products[0].ProductionDate = ""
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := SampleDocument()
			tt.modify(doc)
			err := doc.Validate()
			if len(tt.wantFields) == 0 {
				require.NoError(t, err)
				return
			}
			var fieldErrs FieldErrors
			require.True(t, errors.As(err, &fieldErrs))
			fields := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				require.NotEmpty(t, fe.Err)
				fields = append(fields, fe.Field)
			}
			require.ElementsMatch(t, tt.wantFields, fields)
		})
	}
}

func TestDocument_ValidateNil(t *testing.T) {
	var doc *Document
	require.Error(t, doc.Validate())
}

func TestFieldErrors_Error(t *testing.T) {
	fe := FieldErrors{{Field: "doc_type", Err: "this field is required"}, {Field: "reg_date", Err: "bad"}}
	require.Equal(t, "doc_type: this field is required; reg_date: bad", fe.Error())
}

func mapKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
