package kernel

import (
	"encoding/json"
	"fmt"
	"os"
)

// Segmento es una región cargable de un programa. Si Tamanio supera len(Datos)
// el resto se rellena con ceros.
type Segmento struct {
	VA         uint64 `json:"va"`
	Tamanio    uint64 `json:"tamanio"`
	Datos      []byte `json:"datos"` // base64 en el JSON
	Escribible bool   `json:"escribible"`
}

// Programa es el descriptor que entrega el cargador
type Programa struct {
	Nombre    string     `json:"nombre"`
	Entrada   uint64     `json:"entrada"`
	Segmentos []Segmento `json:"segmentos"`
}

// CargarPrograma lee un descriptor de programa en JSON
func CargarPrograma(ruta string) (*Programa, error) {
	contenido, err := os.ReadFile(ruta)
	if err != nil {
		return nil, fmt.Errorf("error al leer el programa %s: %w", ruta, err)
	}

	var programa Programa
	if err := json.Unmarshal(contenido, &programa); err != nil {
		return nil, fmt.Errorf("error al decodificar el programa %s: %w", ruta, err)
	}
	if programa.Nombre == "" {
		programa.Nombre = ruta
	}

	for i, seg := range programa.Segmentos {
		if uint64(len(seg.Datos)) > seg.Tamanio {
			return nil, fmt.Errorf("programa %s: segmento %d con %d bytes de datos y tamaño %d",
				ruta, i, len(seg.Datos), seg.Tamanio)
		}
	}
	return &programa, nil
}
