package kernel

import (
	"errors"
	"fmt"
)

// accederUsuario recorre [va, va+n) como lo haría la MMU en modo usuario y
// llama a copiar con cada tramo físico. La primera página sin permiso produce
// un *FalloPagina y no se copia nada de ella en adelante.
func (k *Kernel) accederUsuario(pid int, va uint64, n int, escritura bool, copiar func(pagina []byte, hecho int) int) error {
	p, err := k.Proceso(pid)
	if err != nil {
		return err
	}
	if p.Espacio == nil {
		return fmt.Errorf("%w: pid %d sin espacio de direcciones", ErrPIDInvalido, pid)
	}

	l := k.config.Layout
	hecho := 0
	for hecho < n {
		actual := va + uint64(hecho)
		pa, perm, ok := p.Espacio.Traducir(actual)
		if !ok || !perm.Usuario() || (escritura && !perm.Escribible()) {
			return &FalloPagina{PID: pid, Direccion: actual, Escritura: escritura, Presente: ok}
		}
		desplazamiento := pa & (l.TamPagina - 1)
		hecho += copiar(k.mem.Pagina(pa)[desplazamiento:], hecho)
	}
	return nil
}

// LeerUsuario lee n bytes desde va con los permisos del proceso pid
func (k *Kernel) LeerUsuario(pid int, va uint64, n int) ([]byte, error) {
	datos := make([]byte, n)
	err := k.accederUsuario(pid, va, n, false, func(pagina []byte, hecho int) int {
		return copy(datos[hecho:], pagina)
	})
	if err != nil {
		return nil, err
	}
	return datos, nil
}

// EscribirUsuario escribe datos en va con los permisos del proceso pid
func (k *Kernel) EscribirUsuario(pid int, va uint64, datos []byte) error {
	return k.accederUsuario(pid, va, len(datos), true, func(pagina []byte, hecho int) int {
		return copy(pagina, datos[hecho:])
	})
}

// AccesoMemoria ejecuta un acceso de un byte del proceso en ejecución. Si la
// MMU lo rechaza se entrega un page fault al despachador de excepciones; si no,
// el proceso sigue ejecutando y leido trae el byte de va.
func (k *Kernel) AccesoMemoria(va uint64, escritura bool, valor byte) (leido byte, decision Decision, err error) {
	if k.detenido {
		return 0, Decision{Tipo: Detener}, ErrKernelDetenido
	}
	p := k.Actual()
	if p == nil {
		decision, err = k.panico(fmt.Sprintf("acceso a %#x sin proceso en ejecución", va))
		return 0, decision, err
	}

	if escritura {
		err = k.EscribirUsuario(p.PID, va, []byte{valor})
		leido = valor
	} else {
		var datos []byte
		datos, err = k.LeerUsuario(p.PID, va, 1)
		if err == nil {
			leido = datos[0]
		}
	}

	var fallo *FalloPagina
	if errors.As(err, &fallo) {
		regs := p.Regs
		regs.IntNo = IntPageFault
		regs.CR2 = fallo.Direccion
		regs.CodigoError = fallo.CodigoError()
		decision, err = k.Excepcion(regs)
		return 0, decision, err
	}
	if err != nil {
		return 0, Decision{}, err
	}
	return leido, Decision{Tipo: Reanudar, PID: p.PID, Regs: p.Regs}, nil
}
