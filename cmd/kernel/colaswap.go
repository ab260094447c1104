package main

import (
	"fmt"
	"strings"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// ColaSwap es una cola circular de pedidos al demonio de swap, con su
// propio lock y dos canales: uno donde duerme el demonio esperando cola no
// vacía y otro donde duermen los solicitantes esperando su pedido
type ColaSwap struct {
	lock   Spinlock
	frente int
	final  int
	tam    int
	cola   [NPROC + 1]*Proc

	sentinelaCola byte
	sentinelaReq  byte
}

func (sq *ColaSwap) inicializar(nombre string) {
	inicializarLock(&sq.lock, nombre)
	sq.frente = 0
	sq.final = NPROC - 1
	sq.tam = 0
}

// canalCola es el token sobre el que duerme el demonio
func (sq *ColaSwap) canalCola() interface{} { return &sq.sentinelaCola }

// canalReq es el token sobre el que duermen los solicitantes
func (sq *ColaSwap) canalReq() interface{} { return &sq.sentinelaReq }

func (sq *ColaSwap) encolar(p *Proc) {
	if sq.tam == NPROC {
		return
	}
	sq.final = (sq.final + 1) % NPROC
	sq.cola[sq.final] = p
	sq.tam++
}

func (sq *ColaSwap) desencolar() *Proc {
	if sq.tam == 0 {
		return nil
	}
	siguiente := sq.cola[sq.frente]
	sq.frente = (sq.frente + 1) % NPROC
	sq.tam--
	if sq.tam == 0 {
		sq.frente = 0
		sq.final = NPROC - 1
	}
	return siguiente
}

type victima struct {
	pte *PTE
	p   *Proc
	vpn int
}

// claseVictima clasifica una PTE por sus bits de accedida y modificada en
// las cuatro clases NRU: 0=(A0,D0), 1=(A0,D1), 2=(A1,D0), 3=(A1,D1)
func claseVictima(pte PTE) int {
	idx := int((pte & (pteAccedida | pteModificada)) >> 5)
	if idx > 0 && idx < 3 {
		idx = 3 - idx
	}
	return idx
}

// elegirVictimaYExpulsar busca una página para expulsar y la manda a su
// archivo de swap. Corre con los locks de la cola de swap-out y de la tabla
// tomados; los suelta durante la escritura a disco. La expulsión simultánea
// de la misma víctima se evita forzándola a SLEEPING sin canal antes de
// soltar los locks.
func (k *Kernel) elegirVictimaYExpulsar(d *Proc, pidSolicitante int) bool {
	pg := k.config.TamPagina
	var victimas [4]victima

	for i := range k.ptable.procs {
		p := &k.ptable.procs[i]
		if p.estado == EstadoUnused || p.estado == EstadoEmbryo || p.estado == EstadoRunning {
			continue
		}
		if p.esSistema || p.pid == pidSolicitante || p.espacio == nil {
			continue
		}
		// Toda página de usuario presente por encima de la primera
		for va := pg; va < p.tam; va += pg {
			vpn := va / pg
			if vpn >= len(p.espacio.tabla) {
				break
			}
			pte := &p.espacio.tabla[vpn]
			if *pte&pteUsuario == 0 || *pte&ptePresente == 0 {
				continue
			}
			victimas[claseVictima(*pte)] = victima{pte: pte, p: p, vpn: vpn}
		}
	}

	for clase := 0; clase < 4; clase++ {
		v := victimas[clase]
		if v.pte == nil {
			continue
		}

		estadoOrig := v.p.estado
		canalOrig := v.p.canal

		// La víctima no puede correr ni ser despertada mientras su página
		// viaja a disco
		v.p.estado = EstadoSleeping
		v.p.canal = nil

		pteViejo := *v.pte
		*v.pte = (*v.pte &^ ptePresente) | pteSwapeada

		if estadoOrig != EstadoZombie {
			sq := &k.colaSwapOut
			sq.lock.Liberar(d.cpu)
			k.ptable.lock.Liberar(d.cpu)

			datos := make([]byte, pg)
			copy(datos, k.memoria.pagina(pteViejo.marco()))
			if err := k.escribirPagina(d, v.p.pid, v.vpn, datos); err != nil {
				utils.ErrorLog.Error("Error expulsando página", "pid", v.p.pid, "vpn", v.vpn, "error", err)
			}

			sq.lock.Adquirir(d.cpu)
			k.ptable.lock.Adquirir(d.cpu)
		}

		k.memoria.liberarMarco(pteViejo.marco())
		*v.pte &= (1 << desplazamientoMarco) - 1
		v.p.espacio.tlb.Purgar()

		v.p.estado = estadoOrig
		v.p.canal = canalOrig

		// Mientras la víctima dormía sin canal pudo perderse el despertar
		// de su propio pedido de swap; si ya fue satisfecho, reponerlo
		if estadoOrig == EstadoSleeping && v.p.satisfecho && esCanalDeSwap(k, canalOrig) {
			v.p.estado = EstadoRunnable
			if k.politica.PromueveAlDespertar() {
				v.p.prioridad = 3
			}
		}
		return true
	}
	return false
}

// procesoSwapOut es el cuerpo del demonio de swap-out: duerme hasta que la
// cola tenga pedidos y expulsa una página por solicitante. Ante cuota de
// archivos agotada o falta de víctima, cede la CPU y reintenta.
func (k *Kernel) procesoSwapOut(d *Proc) {
	sq := &k.colaSwapOut

	// El despachador nos entrega el lock de la tabla tomado
	k.dormir(d, sq.canalCola(), &k.ptable.lock)

	for {
		utils.InfoLog.Info("Swapout reanudado: cola no vacía")
		sq.lock.Adquirir(d.cpu)

		for sq.tam > 0 {
			for int(k.limiteArchivos.Load()) >= NOFILE {
				k.despertar1(sq.canalReq())
				sq.lock.Liberar(d.cpu)
				k.ptable.lock.Liberar(d.cpu)
				d.ceder()
				sq.lock.Adquirir(d.cpu)
				k.ptable.lock.Adquirir(d.cpu)
			}

			p := sq.desencolar()

			for !k.elegirVictimaYExpulsar(d, p.pid) {
				k.despertar1(sq.canalReq())
				sq.lock.Liberar(d.cpu)
				k.ptable.lock.Liberar(d.cpu)
				d.ceder()
				sq.lock.Adquirir(d.cpu)
				k.ptable.lock.Adquirir(d.cpu)
			}

			p.satisfecho = true
		}

		k.despertar1(sq.canalReq())
		sq.lock.Liberar(d.cpu)
		k.dormir(d, sq.canalCola(), &k.ptable.lock)
	}
}

// procesoSwapIn es el cuerpo del demonio de swap-in: repone páginas
// expulsadas y despierta al proceso que falló sobre ellas
func (k *Kernel) procesoSwapIn(d *Proc) {
	sq := &k.colaSwapIn

	k.dormir(d, sq.canalCola(), &k.ptable.lock)

	for {
		utils.InfoLog.Info("Swapin reanudado: cola no vacía")
		sq.lock.Adquirir(d.cpu)

		for sq.tam > 0 {
			p := sq.desencolar()
			k.limiteArchivos.Add(-1)
			sq.lock.Liberar(d.cpu)
			k.ptable.lock.Liberar(d.cpu)

			vpn := p.trapva / k.config.TamPagina
			var marco int
			for {
				var err error
				marco, err = k.memoria.asignarMarco(p.pid)
				if err == nil {
					break
				}
				// Sin marcos: pedirle una expulsión al swap-out y reintentar
				d.solicitarSwapOut()
			}
			datos, err := k.leerPagina(d, p.pid, vpn)

			sq.lock.Adquirir(d.cpu)
			k.ptable.lock.Adquirir(d.cpu)

			if err != nil {
				utils.ErrorLog.Error("Error reponiendo página", "pid", p.pid, "vpn", vpn, "error", err)
				k.memoria.liberarMarco(marco)
				p.matado = true
			} else {
				copy(k.memoria.pagina(marco), datos)
				*p.espacio.pte(vpn) = ptePara(marco, ptePresente|pteEscritura|pteUsuario)
			}
			p.satisfecho = true
			k.despertar1(canalPid(p.pid))
		}

		sq.lock.Liberar(d.cpu)
		k.dormir(d, sq.canalCola(), &k.ptable.lock)
	}
}

// solicitarSwapOut encola al proceso en la cola de swap-out y duerme hasta
// que el demonio libere un marco para él
func (p *Proc) solicitarSwapOut() {
	k := p.k
	sq := &k.colaSwapOut

	utils.InfoLog.Info(fmt.Sprintf("## PID: %d - Proceso encolado a swap-out", p.pid))

	k.ptable.lock.Adquirir(p.cpu)
	sq.lock.Adquirir(p.cpu)
	p.satisfecho = false
	sq.encolar(p)
	k.despertar1(sq.canalCola())
	sq.lock.Liberar(p.cpu)

	for !p.satisfecho {
		k.dormir(p, sq.canalReq(), &k.ptable.lock)
	}
	k.ptable.lock.Liberar(p.cpu)
}

// solicitarSwapIn encola el fallo de página del proceso y lo duerme sobre
// su pid hasta que el demonio reponga la página
func (p *Proc) solicitarSwapIn() {
	k := p.k
	sq := &k.colaSwapIn

	utils.InfoLog.Info(fmt.Sprintf("## PID: %d - Proceso encolado a swap-in - Dirección: %d", p.pid, p.trapva))

	k.ptable.lock.Adquirir(p.cpu)
	sq.lock.Adquirir(p.cpu)
	p.satisfecho = false
	sq.encolar(p)
	k.despertar1(sq.canalCola())
	sq.lock.Liberar(p.cpu)

	for !p.satisfecho {
		k.dormir(p, canalPid(p.pid), &k.ptable.lock)
	}
	k.ptable.lock.Liberar(p.cpu)
}

// esCanalDeSwap reconoce los canales del tráfico de swap: el pid propio
// (swap-in) y los canales de pedido de ambas colas
func esCanalDeSwap(k *Kernel, canal interface{}) bool {
	if _, ok := canal.(canalPid); ok {
		return true
	}
	return canal == k.colaSwapOut.canalReq() || canal == k.colaSwapIn.canalReq()
}

// limpiarArchivosSwap recupera, de las tablas de descriptores de los
// demonios de swap, los archivos de página que quedaron del proceso que
// está saliendo. Los demonios se buscan por nombre.
func (k *Kernel) limpiarArchivosSwap(c *CPU, pidSaliente int) {
	prefijo := fmt.Sprintf("%d_", pidSaliente)

	k.ptable.lock.Adquirir(c)
	for i := range k.ptable.procs {
		p := &k.ptable.procs[i]
		if p.estado == EstadoUnused {
			continue
		}
		if p.nombre != nombreDemonioSwapOut && p.nombre != nombreDemonioSwapIn {
			continue
		}
		for fd := 0; fd < NOFILE; fd++ {
			f := p.ofile[fd]
			if f == nil || !strings.HasPrefix(f.Nombre, prefijo) {
				continue
			}
			if f.Referencias() < 1 {
				p.ofile[fd] = nil
				continue
			}
			k.ptable.lock.Liberar(c)

			if k.fs.Existe(f.Nombre) {
				utils.InfoLog.Info(fmt.Sprintf("## Archivo de página %s eliminado", f.Nombre))
				if err := k.fs.Eliminar(f.Nombre); err == nil {
					k.limiteArchivos.Add(-1)
				}
			}
			f.Cerrar()
			p.ofile[fd] = nil

			k.ptable.lock.Adquirir(c)
		}
	}
	utils.InfoLog.Info("Totales de swap",
		"swap_ins", k.contSwapIn.Load(),
		"swap_outs", k.contSwapOut.Load())
	k.ptable.lock.Liberar(c)
}
