package memoria

import (
	"encoding/binary"
	"strings"
)

// Permiso es la etiqueta de una entrada de tabla de páginas
type Permiso uint64

const (
	PermPresente   Permiso = 1 << 0
	PermEscritura  Permiso = 1 << 1
	PermUsuario    Permiso = 1 << 2
	mascaraPermiso         = PermPresente | PermEscritura | PermUsuario

	PermAusente          Permiso = 0
	PermKernel                   = PermPresente | PermEscritura
	PermUsuarioLectura           = PermPresente | PermUsuario
	PermUsuarioEscritura         = PermPresente | PermEscritura | PermUsuario
)

func (p Permiso) Presente() bool   { return p&PermPresente != 0 }
func (p Permiso) Escribible() bool { return p&PermEscritura != 0 }
func (p Permiso) Usuario() bool    { return p&PermUsuario != 0 }

func (p Permiso) String() string {
	if !p.Presente() {
		return "ausente"
	}
	var sb strings.Builder
	sb.WriteString("P")
	if p.Escribible() {
		sb.WriteString("W")
	}
	if p.Usuario() {
		sb.WriteString("U")
	}
	return sb.String()
}

// entrada es el valor crudo de 8 bytes de una PTE: dirección física | permisos
type entrada uint64

func nuevaEntrada(pa uint64, perm Permiso) entrada {
	return entrada(pa | uint64(perm&mascaraPermiso))
}

func (e entrada) permiso() Permiso {
	return Permiso(e) & mascaraPermiso
}

func (e entrada) direccion(l Layout) uint64 {
	return uint64(e) &^ (l.TamPagina - 1)
}

func (m *Memoria) leerEntrada(direccionPTE uint64) entrada {
	return entrada(binary.LittleEndian.Uint64(m.datos[direccionPTE : direccionPTE+8]))
}

func (m *Memoria) escribirEntrada(direccionPTE uint64, e entrada) {
	binary.LittleEndian.PutUint64(m.datos[direccionPTE:direccionPTE+8], uint64(e))
}
