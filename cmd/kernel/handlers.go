package main

import (
	"errors"
	"fmt"

	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/kernel"
	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/utils"
)

// registrarHandlers registra todos los manejadores HTTP
func registrarHandlers(modulo *utils.Modulo, m *Maquina, dumpPath string) {
	modulo.RegistrarHandler(utils.MensajeHandshake, "default", HandlerHandshake)
	modulo.RegistrarHandler(utils.MensajeSyscall, "default", m.HandlerSyscall)
	modulo.RegistrarHandler(utils.MensajeInterrupcion, "default", m.HandlerInterrupcion)
	modulo.RegistrarHandler(utils.MensajeAccesoMemoria, "default", m.HandlerAccesoMemoria)
	modulo.RegistrarHandler(utils.MensajeEstado, "default", m.HandlerEstado)
	modulo.RegistrarHandler(utils.MensajeMemoryDump, "default", func(msg *utils.Mensaje) (interface{}, error) {
		return m.HandlerMemoryDump(msg, dumpPath)
	})

	utils.InfoLog.Info("Handlers registrados correctamente")
}

// HandlerHandshake responde a la conexión inicial de la CPU
func HandlerHandshake(msg *utils.Mensaje) (interface{}, error) {
	utils.InfoLog.Info("Handshake recibido", "origen", msg.Origen)
	return map[string]interface{}{"status": "OK", "message": "Handshake recibido"}, nil
}

// respuestaDecision arma la respuesta común a toda entrada al kernel
func respuestaDecision(d kernel.Decision, err error) map[string]interface{} {
	respuesta := map[string]interface{}{
		"status":   "OK",
		"decision": d.Tipo.String(),
	}
	switch d.Tipo {
	case kernel.Reanudar:
		respuesta["pid"] = d.PID
		respuesta["rip"] = d.Regs.RIP
	case kernel.Panico:
		respuesta["mensaje"] = d.Mensaje
	}
	if err != nil {
		respuesta["status"] = "ERROR"
		respuesta["mensaje"] = err.Error()
	}
	return respuesta
}

// HandlerSyscall atiende {numero, arg} o, si la operación es un nombre de
// syscall (FORK, PAGE_ALLOC, ...), {arg}
func (m *Maquina) HandlerSyscall(msg *utils.Mensaje) (interface{}, error) {
	numero, ok := kernel.NumeroSyscall(msg.Operacion)
	if !ok {
		numero, ok = utils.ExtraerEntero(msg.Datos, "numero")
		if !ok {
			return map[string]interface{}{"status": "ERROR", "mensaje": "Número de syscall inválido o faltante"}, nil
		}
	}
	arg, _ := utils.ExtraerEntero(msg.Datos, "arg")

	retorno, existe, d, err := m.Syscall(numero, arg)
	respuesta := respuestaDecision(d, err)
	if existe && err == nil {
		respuesta["retorno"] = retorno
	}
	return respuesta, nil
}

// HandlerInterrupcion entrega un tick del timer
func (m *Maquina) HandlerInterrupcion(msg *utils.Mensaje) (interface{}, error) {
	d, err := m.Interrupcion()
	return respuestaDecision(d, err), nil
}

// HandlerAccesoMemoria ejecuta una lectura o escritura de usuario {va, escritura, valor}
func (m *Maquina) HandlerAccesoMemoria(msg *utils.Mensaje) (interface{}, error) {
	va, ok := utils.ExtraerEntero(msg.Datos, "va")
	if !ok {
		return map[string]interface{}{"status": "ERROR", "mensaje": "Dirección virtual inválida o faltante"}, nil
	}
	escritura := utils.ExtraerBool(msg.Datos, "escritura")
	valor, _ := utils.ExtraerEntero(msg.Datos, "valor")
	if valor > 0xFF {
		return map[string]interface{}{"status": "ERROR", "mensaje": fmt.Sprintf("valor %d no entra en un byte", valor)}, nil
	}

	leido, d, err := m.AccesoMemoria(va, escritura, byte(valor))
	respuesta := respuestaDecision(d, err)
	if err == nil && d.Tipo == kernel.Reanudar {
		respuesta["valor"] = leido
	}
	return respuesta, nil
}

// HandlerEstado devuelve la tabla de procesos, los ticks y la auditoría de marcos
func (m *Maquina) HandlerEstado(msg *utils.Mensaje) (interface{}, error) {
	var respuesta map[string]interface{}
	m.Consultar(func(k *kernel.Kernel, d kernel.Decision) {
		respuesta = respuestaDecision(d, nil)
		respuesta["ticks"] = k.Ticks()
		respuesta["procesos"] = k.Resumen()
		respuesta["marcos_libres"] = k.Memoria().MarcosLibres()
		respuesta["marcos_en_uso"] = k.Memoria().MarcosEnUso()
		if err := k.Auditar(); err != nil {
			respuesta["auditoria"] = err.Error()
		} else {
			respuesta["auditoria"] = "OK"
		}
	})
	return respuesta, nil
}

// HandlerMemoryDump vuelca las páginas de usuario de {pid}, o del proceso en la CPU
func (m *Maquina) HandlerMemoryDump(msg *utils.Mensaje, dir string) (interface{}, error) {
	var (
		ruta string
		err  error
	)
	m.Consultar(func(k *kernel.Kernel, d kernel.Decision) {
		pid, ok := utils.ExtraerEntero(msg.Datos, "pid")
		if !ok {
			if d.Tipo != kernel.Reanudar {
				err = ErrSinProceso
				return
			}
			pid = uint64(d.PID)
		}
		ruta, err = k.CrearMemoryDump(int(pid), dir)
	})

	if err != nil {
		utils.ErrorLog.Error("Error en memory dump", "error", err)
		estado := "ERROR"
		if errors.Is(err, kernel.ErrPIDInvalido) {
			estado = "PID_INVALIDO"
		}
		return map[string]interface{}{"status": estado, "mensaje": err.Error()}, nil
	}
	return map[string]interface{}{"status": "OK", "archivo": ruta}, nil
}
