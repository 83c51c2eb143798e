package memoria

import (
	"errors"
	"fmt"

	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/utils"
)

// EspacioDirecciones es el árbol de tablas de páginas de un proceso.
// Cada proceso tiene su propia raíz aunque comparta marcos con otros.
type EspacioDirecciones struct {
	mem  *Memoria
	raiz uint64
}

// NuevoEspacio asigna una raíz vacía
func NuevoEspacio(mem *Memoria) (*EspacioDirecciones, error) {
	raiz, err := mem.Asignar(mem.layout.TamPagina)
	if err != nil {
		return nil, fmt.Errorf("no se pudo asignar la raíz de la tabla de páginas: %w", err)
	}
	return &EspacioDirecciones{mem: mem, raiz: raiz}, nil
}

// Raiz devuelve la dirección física de la tabla de primer nivel
func (e *EspacioDirecciones) Raiz() uint64 {
	return e.raiz
}

// Memoria devuelve la memoria física sobre la que vive el espacio
func (e *EspacioDirecciones) Memoria() *Memoria {
	return e.mem
}

// Instalar mapea va -> pa con perm. Falla con ErrConflictoAlias si va ya
// estaba mapeada y con ErrSinMemoria si no se pudo extender la estructura;
// en ambos casos el espacio queda sin el mapeo pedido.
func (e *EspacioDirecciones) Instalar(va uint64, pa uint64, perm Permiso) error {
	l := e.mem.layout
	if va%l.TamPagina != 0 || va >= l.CoberturaVirtual() {
		return fmt.Errorf("%w: va %#x", ErrDireccionInvalida, va)
	}

	it := e.Iterador(va)
	if it.Presente() {
		actual, _ := it.Marco()
		return fmt.Errorf("%w: va %#x -> pa %#x", ErrConflictoAlias, va, actual)
	}
	return it.Mapear(pa, perm)
}

// Desmapear quita el mapeo de va y devuelve el marco y permiso que tenía
func (e *EspacioDirecciones) Desmapear(va uint64) (uint64, Permiso, bool) {
	it := e.Iterador(e.mem.layout.RedondearAbajo(va))
	pa, ok := it.Marco()
	if !ok {
		return 0, PermAusente, false
	}
	perm := it.Perm()
	_ = it.Mapear(0, PermAusente)
	return pa, perm, true
}

// Traducir devuelve la dirección física y el permiso efectivo de va
func (e *EspacioDirecciones) Traducir(va uint64) (uint64, Permiso, bool) {
	it := e.Iterador(va)
	pa, ok := it.PA()
	return pa, it.Perm(), ok
}

// MapearPrefijoKernel replica en el espacio el mapeo identidad del kernel
// por debajo de INICIO_PROCESOS. Todo queda solo-kernel salvo la consola,
// que es escribible por el usuario y suma una referencia.
func (e *EspacioDirecciones) MapearPrefijoKernel() error {
	l := e.mem.layout
	for va := l.TamPagina; va < l.InicioProcesos; va += l.TamPagina {
		perm := PermKernel
		if va == l.DireccionConsola {
			perm = PermUsuarioEscritura
		}
		if err := e.Instalar(va, va, perm); err != nil {
			return fmt.Errorf("error mapeando el prefijo del kernel: %w", err)
		}
		if va == l.DireccionConsola {
			if err := e.mem.Referenciar(va); err != nil {
				return err
			}
		}
	}
	return nil
}

// esCompartidaPorKernel indica si un mapeo no pertenece al proceso:
// el prefijo del kernel y el marco de consola.
func (e *EspacioDirecciones) esCompartidaPorKernel(it *Iterador) bool {
	pa, _ := it.Marco()
	return !it.Usuario() || pa == e.mem.layout.DireccionConsola
}

// Duplicar crea el espacio del hijo de un fork:
//   - prefijo del kernel y consola: mismo marco y permiso (la consola suma referencia)
//   - páginas de usuario de solo lectura: mismo marco, suma referencia
//   - páginas de usuario escribibles: marco nuevo con copia del contenido
//
// Si algo falla se desarma todo lo instalado en el hijo y el espacio original
// queda intacto.
func (e *EspacioDirecciones) Duplicar() (*EspacioDirecciones, error) {
	l := e.mem.layout

	hijo, err := NuevoEspacio(e.mem)
	if err != nil {
		return nil, err
	}

	for it := e.Iterador(0); it.VA() < l.MemoriaVirtual; it.Siguiente() {
		if !it.Presente() {
			continue
		}
		if err := hijo.duplicarPagina(it); err != nil {
			utils.ErrorLog.Warn("Fallo duplicando espacio, deshaciendo", "va", it.VA(), "error", err)
			if errDestruir := hijo.Destruir(); errDestruir != nil {
				return nil, errors.Join(err, errDestruir)
			}
			return nil, err
		}
	}

	utils.InfoLog.Debug("Espacio duplicado", "raiz_origen", e.raiz, "raiz_hijo", hijo.raiz)
	return hijo, nil
}

func (e *EspacioDirecciones) duplicarPagina(origen *Iterador) error {
	va := origen.VA()
	pa, _ := origen.Marco()
	perm := origen.Perm()
	consola := pa == e.mem.layout.DireccionConsola

	switch {
	case !perm.Usuario() || consola:
		if err := e.Instalar(va, pa, perm); err != nil {
			return err
		}
		if consola {
			return e.mem.Referenciar(pa)
		}
		return nil

	case !perm.Escribible():
		if err := e.Instalar(va, pa, perm); err != nil {
			return err
		}
		return e.mem.Referenciar(pa)

	default:
		copia, err := e.mem.Asignar(e.mem.layout.TamPagina)
		if err != nil {
			return fmt.Errorf("no se pudo copiar la página %#x: %w", va, err)
		}
		copy(e.mem.Pagina(copia), e.mem.Pagina(pa))
		if err := e.Instalar(va, copia, perm); err != nil {
			return errors.Join(err, e.mem.Liberar(copia))
		}
		return nil
	}
}

// QuitarMapeosUsuario desmapea todas las páginas de usuario y suelta sus marcos.
// El prefijo del kernel y la consola se conservan.
func (e *EspacioDirecciones) QuitarMapeosUsuario() error {
	l := e.mem.layout
	for it := e.Iterador(0); it.VA() < l.MemoriaVirtual; it.Siguiente() {
		if !it.Presente() || e.esCompartidaPorKernel(it) {
			continue
		}
		pa, _ := it.Marco()
		if err := it.Mapear(0, PermAusente); err != nil {
			return err
		}
		if err := e.mem.Liberar(pa); err != nil {
			return err
		}
	}
	return nil
}

// Destruir suelta cada marco de usuario, la referencia a la consola, las
// páginas de la propia tabla y por último la raíz. Un espacio nil no hace nada.
func (e *EspacioDirecciones) Destruir() error {
	if e == nil || e.raiz == 0 {
		return nil
	}
	l := e.mem.layout

	for it := e.Iterador(0); it.VA() < l.MemoriaVirtual; it.Siguiente() {
		if !it.Presente() || !it.Usuario() {
			continue
		}
		// La consola nunca vuelve al pool: Liberar solo descuenta este mapeo
		pa, _ := it.Marco()
		if err := e.mem.Liberar(pa); err != nil {
			return fmt.Errorf("error liberando va %#x: %w", it.VA(), err)
		}
	}

	for pt := e.IteradorTablas(); pt.Activo(); pt.Siguiente() {
		if err := e.mem.Liberar(pt.Actual().PA); err != nil {
			return fmt.Errorf("error liberando tabla de nivel %d: %w", pt.Actual().Nivel, err)
		}
	}

	if err := e.mem.Liberar(e.raiz); err != nil {
		return fmt.Errorf("error liberando la raíz: %w", err)
	}
	e.raiz = 0
	return nil
}

// ContarMapeosUsuario cuenta, por marco, cuántas hojas de usuario lo referencian
func (e *EspacioDirecciones) ContarMapeosUsuario(conteo map[uint64]int) {
	if e == nil || e.raiz == 0 {
		return
	}
	for it := e.Iterador(0); it.VA() < e.mem.layout.MemoriaVirtual; it.Siguiente() {
		if it.Presente() && it.Usuario() {
			pa, _ := it.Marco()
			conteo[pa]++
		}
	}
}

// PaginasDeTabla devuelve los marcos que forman la estructura, raíz incluida
func (e *EspacioDirecciones) PaginasDeTabla() []uint64 {
	if e == nil || e.raiz == 0 {
		return nil
	}
	paginas := []uint64{e.raiz}
	for pt := e.IteradorTablas(); pt.Activo(); pt.Siguiente() {
		paginas = append(paginas, pt.Actual().PA)
	}
	return paginas
}
